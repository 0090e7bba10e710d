package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shiroa-systems/a2a-runtime/internal/apierr"
)

// handleReplyGet peeks the reply target for ?sender=<id>, or the most
// recently recorded sender overall when sender is omitted. It never
// removes the entry.
func (s *Server) handleReplyGet(c *gin.Context) {
	sender := c.Query("sender")
	if sender != "" {
		desc, ok := s.replies.Lookup(sender)
		if !ok {
			apierr.NotFound(c, "no reply target recorded for sender "+sender)
			return
		}
		c.JSON(http.StatusOK, desc)
		return
	}

	desc, ok := s.replies.MostRecent()
	if !ok {
		apierr.NotFound(c, "no reply target recorded")
		return
	}
	c.JSON(http.StatusOK, desc)
}

// handleReplyPop is handleReplyGet's mutating counterpart: it removes
// the returned entry so the same reply target is not offered twice.
func (s *Server) handleReplyPop(c *gin.Context) {
	sender := c.Query("sender")
	if sender != "" {
		desc, ok, err := s.replies.Pop(sender)
		if err != nil {
			apierr.Internal(c, err.Error())
			return
		}
		if !ok {
			apierr.NotFound(c, "no reply target recorded for sender "+sender)
			return
		}
		c.JSON(http.StatusOK, desc)
		return
	}

	desc, ok, err := s.replies.PopMostRecent()
	if err != nil {
		apierr.Internal(c, err.Error())
		return
	}
	if !ok {
		apierr.NotFound(c, "no reply target recorded")
		return
	}
	c.JSON(http.StatusOK, desc)
}

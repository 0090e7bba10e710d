package httpmw

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shiroa-systems/a2a-runtime/internal/apierr"
	"github.com/shiroa-systems/a2a-runtime/internal/logging"
)

// Recovery turns a panic in a later handler into a 500 apierr.Internal
// response instead of killing the listener goroutine. Registered first
// so it wraps RequestLogger and every route handler.
func Recovery(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered in http handler", zap.Any("panic", r))
				apierr.Internal(c, fmt.Sprintf("internal error: %v", r))
			}
		}()
		c.Next()
	}
}

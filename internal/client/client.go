// Package client is the outbound sender every agent uses to reach a
// peer: it prefers the peer's Unix-domain socket when one is
// registered and accepting connections, falling back to TCP when
// dialing it fails, and it determines the caller's own agent identity by
// walking the process's ancestor chain against the local registry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/shiroa-systems/a2a-runtime/internal/logging"
	"github.com/shiroa-systems/a2a-runtime/internal/registry"
	"github.com/shiroa-systems/a2a-runtime/internal/stringutil"
	"github.com/shiroa-systems/a2a-runtime/pkg/a2a"
)

// ErrTargetNotFound is returned when the destination agent identifier
// has no live registry entry, distinguishing it from a transport or
// protocol failure.
var ErrTargetNotFound = errors.New("client: target agent not found")

// ErrSelfNotAuthenticated is returned when the caller's own identity
// cannot be established: an explicit agent id that isn't registered,
// or no registry entry matching this process or any ancestor.
var ErrSelfNotAuthenticated = errors.New("client: caller identity could not be established")

// requestTimeout bounds a single outbound call; it is not the task's
// own lifetime, only how long the sender waits for the receiver to
// accept delivery (step 7 of the delivery pipeline returns immediately).
const requestTimeout = 10 * time.Second

// Client sends messages to local and external agents on behalf of one
// caller. A single Client is typically shared by every subcommand a
// CLI invocation runs.
type Client struct {
	registry   *registry.Registry
	httpClient *http.Client
	udsClient  *http.Client
	logger     *logging.Logger
}

// New returns a Client backed by reg for local agent discovery.
func New(reg *registry.Registry, log *logging.Logger) *Client {
	return &Client{
		registry:   reg,
		httpClient: &http.Client{Timeout: requestTimeout},
		udsClient:  &http.Client{Timeout: requestTimeout},
		logger:     log.WithFields(zap.String("component", "client")),
	}
}

// SendOptions parameterizes an outbound send.
type SendOptions struct {
	// SelfAgentID, if non-empty, is trusted as the caller's identity
	// after shape validation and a registry presence check. Empty
	// triggers ancestor-PID self-identification.
	SelfAgentID string

	Priority         int // 1-5; 0 defaults to the server's own default lane
	ResponseExpected bool
	InReplyTo        string
}

// ResolveSelf exposes self-identification for callers that need the
// caller's own agent id before composing a message, such as a reply
// helper that must first open its own reply-target store.
func (c *Client) ResolveSelf(explicit string) (string, error) {
	return c.resolveSelf(explicit)
}

// SendToLocal delivers msg to the local agent identified by
// targetAgentID, resolving its own identity first and, when a reply is
// expected, minting a sender-side task id on its own server before
// posting to the receiver.
func (c *Client) SendToLocal(ctx context.Context, targetAgentID string, msg a2a.Message, opts SendOptions) (*a2a.Task, error) {
	selfID, err := c.resolveSelf(opts.SelfAgentID)
	if err != nil {
		return nil, fmt.Errorf("client: determine own identity: %w", err)
	}
	selfEntry, alive, err := c.registry.Resolve(selfID)
	if err != nil {
		return nil, fmt.Errorf("client: look up own registry entry: %w", err)
	}
	if !alive {
		return nil, fmt.Errorf("client: own registry entry %q not found or not alive", selfID)
	}

	targetEntry, alive, err := c.registry.Resolve(targetAgentID)
	if err != nil {
		return nil, fmt.Errorf("client: look up target %q: %w", targetAgentID, err)
	}
	if !alive {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, targetAgentID)
	}

	sender := a2a.SenderDescriptor{
		AgentID:  selfEntry.AgentID,
		Kind:     selfEntry.Kind,
		Endpoint: selfEntry.Endpoint,
		UDSPath:  selfEntry.UDSPath,
	}

	if opts.ResponseExpected {
		senderTaskID, err := c.allocateSenderTask(ctx, selfEntry, msg, opts.InReplyTo)
		if err != nil {
			return nil, fmt.Errorf("client: allocate sender-side task: %w", err)
		}
		sender.SenderTaskID = senderTaskID
	}

	meta := a2a.Metadata{
		Sender:           &sender,
		ResponseExpected: opts.ResponseExpected,
		InReplyTo:        opts.InReplyTo,
	}

	path := "/tasks/send"
	if opts.Priority > 0 {
		path = fmt.Sprintf("/tasks/send-priority?priority=%d", opts.Priority)
	}

	var task a2a.Task
	if err := c.postJSON(ctx, targetEntry, path, SendBody{Message: msg, Metadata: meta}, &task); err != nil {
		return nil, fmt.Errorf("client: send to %s: %w", targetAgentID, err)
	}
	c.recordTransportHint(selfEntry, targetEntry)
	return &task, nil
}

// SendToExternal delivers msg directly to baseURL, bypassing the local
// registry entirely — used for hand-authored external-agent entries
// that live outside this host's process tree.
func (c *Client) SendToExternal(ctx context.Context, baseURL string, msg a2a.Message, meta a2a.Metadata) (*a2a.Task, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid external URL %q: %w", baseURL, err)
	}
	u.Path = "/tasks/send"

	body, err := json.Marshal(SendBody{Message: msg, Metadata: meta})
	if err != nil {
		return nil, fmt.Errorf("client: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: external send failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("client: external send failed with status %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	var task a2a.Task
	if err := json.Unmarshal(respBody, &task); err != nil {
		return nil, fmt.Errorf("client: parse response (status %d, body %s): %w", resp.StatusCode, truncateBody(respBody), err)
	}
	return &task, nil
}

// SendBody is the wire request shared by /tasks/send and
// /tasks/send-priority.
type SendBody struct {
	Message  a2a.Message  `json:"message"`
	Metadata a2a.Metadata `json:"metadata"`
}

// allocateSenderTask calls POST /tasks/create on the caller's own
// server to mint a sender-side task id, the only reason that endpoint
// exists: it lets the receiver's reply carry in_reply_to pointing back
// to a task the sender already knows about.
func (c *Client) allocateSenderTask(ctx context.Context, self registry.Entry, msg a2a.Message, inReplyTo string) (string, error) {
	var task a2a.Task
	body := SendBody{Message: msg, Metadata: a2a.Metadata{InReplyTo: inReplyTo}}
	if err := c.postJSON(ctx, self, "/tasks/create", body, &task); err != nil {
		return "", err
	}
	return task.ID, nil
}

// postJSON posts body to path on target, preferring its Unix-domain
// socket when one is registered and accepts a connection, falling back
// to TCP only when dialing the socket fails. Any other UDS error (an
// error status, an unreadable response) is returned as is.
func (c *Client) postJSON(ctx context.Context, target registry.Entry, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	if target.UDSPath != "" && udsSocketExists(target.UDSPath) {
		err := c.doPost(ctx, c.udsClient, "http://unix"+path, target.UDSPath, data, out)
		var opErr *net.OpError
		if err == nil || !errors.As(err, &opErr) || opErr.Op != "dial" {
			return err
		}
		c.logger.Warn("uds dial failed, falling back to tcp",
			zap.String("agent_id", target.AgentID), zap.Error(err))
	}

	return c.doPost(ctx, c.httpClient, target.Endpoint+path, "", data, out)
}

func (c *Client) doPost(ctx context.Context, hc *http.Client, fullURL, udsPath string, data []byte, out interface{}) error {
	client := hc
	if udsPath != "" {
		client = &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", udsPath)
				},
			},
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, truncateBody(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response (status %d, body %s): %w", resp.StatusCode, truncateBody(respBody), err)
		}
	}
	return nil
}

// recordTransportHint sets the observability-only last_transport hint
// on both registry entries. Its failure is logged, never returned: the
// spec is explicit that this side effect must not gate delivery.
func (c *Client) recordTransportHint(self, target registry.Entry) {
	transport := "tcp"
	if target.UDSPath != "" && udsSocketExists(target.UDSPath) {
		transport = "uds"
	}
	now := time.Now()
	for _, e := range []registry.Entry{self, target} {
		e.LastTransport = transport
		e.LastSeenAt = now
		if err := c.registry.Register(e); err != nil {
			c.logger.Debug("failed to record transport hint", zap.String("agent_id", e.AgentID), zap.Error(err))
		}
	}
}

func udsSocketExists(path string) bool {
	conn, err := net.DialTimeout("unix", path, 200*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncateBody(body []byte) string {
	const maxLen = 200
	return stringutil.TruncateStringWithEllipsis(string(body), maxLen)
}

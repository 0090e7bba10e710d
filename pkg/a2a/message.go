package a2a

import "encoding/json"

// Role identifies who authored a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// PartKind discriminates the three part shapes a message can carry.
type PartKind string

const (
	PartText PartKind = "text"
	PartFile PartKind = "file"
	PartData PartKind = "data"
)

// Part is one typed fragment of a message. Exactly one of Text, File, or
// Data is populated, selected by Kind. Ordering and kind survive JSON
// round-trips unchanged: Parts is always serialized as an array and never
// reordered or coalesced.
type Part struct {
	Kind PartKind        `json:"kind"`
	Text string          `json:"text,omitempty"`
	File *FilePart       `json:"file,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// FilePart carries either raw bytes or a base64 body alongside its name
// and declared MIME type.
type FilePart struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Bytes    []byte `json:"bytes,omitempty"`
	Base64   string `json:"base64,omitempty"`
}

// Message is an ordered sequence of parts submitted as the input (or
// produced as the output) of a task.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// SenderDescriptor identifies who sent a task. It is populated by the
// sender from the sender's own registry lookup and trusted verbatim by
// the receiver — the receiver never re-derives it.
type SenderDescriptor struct {
	AgentID      string `json:"agent_id"`
	Kind         string `json:"kind"`
	Endpoint     string `json:"endpoint"`
	UDSPath      string `json:"uds_path,omitempty"`
	SenderTaskID string `json:"sender_task_id,omitempty"`
}

// Valid reports whether the descriptor carries the minimum fields the
// reply-target store requires: an agent identifier plus a reachable
// endpoint (HTTP or UDS).
func (d *SenderDescriptor) Valid() bool {
	if d == nil {
		return false
	}
	if d.AgentID == "" {
		return false
	}
	return d.Endpoint != "" || d.UDSPath != ""
}

// Metadata is the free-form envelope attached to a task's originating
// message: the sender descriptor plus the response-expectation flag and
// any reply linkage.
type Metadata struct {
	Sender           *SenderDescriptor `json:"sender,omitempty"`
	ResponseExpected bool              `json:"response_expected,omitempty"`
	InReplyTo        string            `json:"in_reply_to,omitempty"`
}

// AgentCard is served at /.well-known/agent.json: the agent's identity,
// endpoints, and skills. It carries no capabilities or extension-hint
// fields.
type AgentCard struct {
	AgentID     string   `json:"agent_id"`
	Kind        string   `json:"kind"`
	DisplayName string   `json:"display_name,omitempty"`
	Role        string   `json:"role,omitempty"`
	Endpoint    string   `json:"endpoint"`
	UDSPath     string   `json:"uds_path,omitempty"`
	Skills      []string `json:"skills,omitempty"`
}

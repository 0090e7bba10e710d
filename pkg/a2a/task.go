package a2a

// State is a task's position in its lifecycle. Transitions follow
// submitted -> working -> {completed, failed, canceled}, with a single
// reentrant branch through input-required back to working.
type State string

const (
	StateSubmitted     State = "submitted"
	StateWorking       State = "working"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
	StateInputRequired State = "input-required"
	StateCanceled      State = "canceled"
)

// Terminal reports whether no further state transition is permitted.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCanceled:
		return true
	default:
		return false
	}
}

// Artifact is an output produced by a task, carried as one more typed
// part alongside an optional name.
type Artifact struct {
	Name string `json:"name,omitempty"`
	Part Part   `json:"part"`
}

// Task is the lifecycle object created for every inbound message. ID is
// a 32-character lowercase hex rendering of a 128-bit UUID.
type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"context_id,omitempty"`
	State     State      `json:"state"`
	Message   Message    `json:"message"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Metadata  Metadata   `json:"metadata"`
	CreatedAt Time       `json:"created_at"`
	UpdatedAt Time       `json:"updated_at"`
}

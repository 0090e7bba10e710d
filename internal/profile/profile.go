// Package profile describes one kind of wrapped program: the executable
// to spawn, the regular expressions that reveal its state, the sequence
// that submits injected input, and the port range it is allotted.
package profile

import "fmt"

// DetectionStyle selects how the supervisor classifies the wrapped
// program's state from accumulated output.
type DetectionStyle string

const (
	// StylePattern relies solely on the idle/input-ready/waiting regexes.
	StylePattern DetectionStyle = "pattern"
	// StyleTimeout relies solely on output silence.
	StyleTimeout DetectionStyle = "timeout"
	// StyleHybrid requires a pattern match guarded by a timeout.
	StyleHybrid DetectionStyle = "hybrid"
)

// String returns the string representation of the detection style.
func (s DetectionStyle) String() string {
	return string(s)
}

// IsValid returns true if s is one of the known detection styles.
func (s DetectionStyle) IsValid() bool {
	switch s {
	case StylePattern, StyleTimeout, StyleHybrid:
		return true
	default:
		return false
	}
}

// SubmitSequence is the byte sequence appended after an injected message
// so the wrapped program treats it as submitted input.
type SubmitSequence string

const (
	SubmitCR   SubmitSequence = "cr"
	SubmitLF   SubmitSequence = "lf"
	SubmitCRLF SubmitSequence = "crlf"
)

// Bytes returns the literal bytes this submit sequence writes.
func (s SubmitSequence) Bytes() []byte {
	switch s {
	case SubmitCR:
		return []byte{'\r'}
	case SubmitCRLF:
		return []byte{'\r', '\n'}
	default:
		return []byte{'\n'}
	}
}

// PortRange is an inclusive [Base, Max] band of ports reserved for one
// profile kind.
type PortRange struct {
	Base int `yaml:"base"`
	Max  int `yaml:"max"`
}

// Profile is the declarative per-kind configuration loaded from a YAML
// file at bootstrap.
type Profile struct {
	// Kind is the profile class name, e.g. "claude". Combined with the
	// assigned port it forms the agent identifier.
	Kind string `yaml:"kind"`

	// Executable and Args describe the wrapped program's invocation.
	Executable string   `yaml:"executable"`
	Args       []string `yaml:"args"`
	WorkDir    string   `yaml:"work_dir"`

	// Detection describes how supervisor state is derived.
	Detection       DetectionStyle `yaml:"detection"`
	IdleRegex       string         `yaml:"idle_regex"`
	InputReadyRegex string         `yaml:"input_ready_regex"`
	WaitingRegex    string         `yaml:"waiting_regex"`
	IdleTimeoutMS   int            `yaml:"idle_timeout_ms"`

	// SubmitSequence is appended after injected input.
	SubmitSequence SubmitSequence `yaml:"submit_sequence"`

	// Ports is this kind's reserved port band.
	Ports PortRange `yaml:"ports"`

	// InitialInstruction is injected once the wrapped program is first
	// observed ready.
	InitialInstruction string `yaml:"initial_instruction"`

	// ApprovalMode gates the initial instruction behind a confirmation:
	// "auto" (never prompts) or "interactive".
	ApprovalMode string `yaml:"approval_mode"`

	// Coordinator marks this agent as delegate-only. filesafety's
	// ValidateWrite denies writes for a coordinator, but takes that as
	// its own argument; nothing in this tree reads this field.
	Coordinator bool `yaml:"coordinator"`

	// LongPayloadThreshold overrides the default byte length above which
	// an injected message is spilled to a scratch file. Zero uses the
	// package default.
	LongPayloadThreshold int `yaml:"long_payload_threshold"`
}

// Validate checks the profile for the fields the supervisor and
// bootstrap require to be non-empty and self-consistent.
func (p *Profile) Validate() error {
	if p.Kind == "" {
		return fmt.Errorf("profile: kind is required")
	}
	if p.Executable == "" {
		return fmt.Errorf("profile: executable is required")
	}
	if p.Ports.Base <= 0 || p.Ports.Max < p.Ports.Base {
		return fmt.Errorf("profile: invalid port range [%d, %d]", p.Ports.Base, p.Ports.Max)
	}
	if p.Detection == "" {
		p.Detection = StyleHybrid
	}
	if !p.Detection.IsValid() {
		return fmt.Errorf("profile: unknown detection style %q", p.Detection)
	}
	if p.Detection != StyleTimeout && p.IdleRegex == "" {
		return fmt.Errorf("profile: idle_regex is required for detection style %q", p.Detection)
	}
	if p.SubmitSequence == "" {
		p.SubmitSequence = SubmitLF
	}
	if p.ApprovalMode == "" {
		p.ApprovalMode = "auto"
	}
	return nil
}

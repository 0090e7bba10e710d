// Package a2a holds the wire types shared by the HTTP/UDS server and the
// outbound client: the task envelope, message parts, and sender
// descriptor that make up the protocol's JSON contract.
package a2a

import (
	"strings"
	"time"
)

// Time marshals as RFC 3339 UTC with a trailing "Z", the wire format of
// task timestamps. Registry entries use plain time.Time instead.
type Time struct {
	time.Time
}

// Now returns the current time as a wire Time.
func Now() Time {
	return Time{time.Now().UTC()}
}

// MarshalJSON renders the timestamp as RFC 3339 UTC with a "Z" suffix.
func (t Time) MarshalJSON() ([]byte, error) {
	s := t.UTC().Format(time.RFC3339)
	return []byte(`"` + s + `"`), nil
}

// UnmarshalJSON parses an RFC 3339 timestamp.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

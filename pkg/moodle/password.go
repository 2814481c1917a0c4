package moodle

import (
	"net/url"

	"github.com/rs/zerolog"
)

const redacted = "[REDACTED]"

// Password holds a secret in a mutable buffer so it can be wiped once the
// token exchange is done. It never renders its contents through fmt, JSON
// or zerolog.
type Password struct {
	b []byte
}

// NewPassword takes ownership of b. Wipe clears b.
func NewPassword(b []byte) *Password {
	return &Password{b: b}
}

// PasswordFromString copies s into a new Password.
func PasswordFromString(s string) *Password {
	return &Password{b: []byte(s)}
}

// Bytes returns the underlying buffer.
func (p *Password) Bytes() []byte {
	if p == nil {
		return nil
	}
	return p.b
}

func (p *Password) Len() int {
	if p == nil {
		return 0
	}
	return len(p.b)
}

// Wipe zeroes the buffer and empties the password.
func (p *Password) Wipe() {
	if p == nil {
		return
	}
	clear(p.b)
	p.b = p.b[:0]
}

// QueryValue returns the percent-encoded password for a form body.
func (p *Password) QueryValue() string {
	return url.QueryEscape(string(p.Bytes()))
}

func (p *Password) String() string {
	return redacted
}

func (p *Password) GoString() string {
	return "moodle.Password(" + redacted + ")"
}

func (p *Password) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (p *Password) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("set", p.Len() > 0)
}

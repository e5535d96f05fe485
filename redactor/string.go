package redactor

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"runtime"
)

const encodeFuncName = "github.com/johnstarich/banklink/redactor.(*Encoder).Encode"

// String is a secret, i.e. an aggregator secret key or access token. It is redacted when marshaling unless using redactor.Encoder
type String string

// MarshalJSON implements json.Marshaler
func (s String) MarshalJSON() ([]byte, error) {
	if isRedacted() {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

const redacted = "[redacted]"

// String implements fmt.Stringer, keeping secrets out of logs and error messages
func (s String) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString implements fmt.GoStringer
func (s String) GoString() string {
	return s.String()
}

// Equal compares s with other in constant time
func (s String) Equal(other String) bool {
	return subtle.ConstantTimeCompare([]byte(s), []byte(other)) == 1
}

// Encoder marshals values into JSON with redacted values included. Only use this when persisting to disk and NOT sending over HTTP.
type Encoder json.Encoder

// NewEncoder creates a new json.Encoder
func NewEncoder(w io.Writer) *Encoder {
	return (*Encoder)(json.NewEncoder(w))
}

func (p *Encoder) toJSONEncoder() *json.Encoder {
	return (*json.Encoder)(p)
}

// Encode calls json.Encoder.Encode
func (p *Encoder) Encode(v interface{}) error {
	return p.toJSONEncoder().Encode(v)
}

// SetIndent calls json.Encoder.SetIndent
func (p *Encoder) SetIndent(prefix, indent string) {
	p.toJSONEncoder().SetIndent(prefix, indent)
}

// SetEscapeHTML calls json.Encoder.SetEscapeHTML
func (p *Encoder) SetEscapeHTML(on bool) {
	p.toJSONEncoder().SetEscapeHTML(on)
}

func isRedacted() bool {
	// walk the stack for Encoder.Encode. crude, but keeps secrets out of every other marshal path
	var pc uintptr
	ok := true
	for caller := 0; ok; caller++ {
		pc, _, _, ok = runtime.Caller(caller)
		if ok && runtime.FuncForPC(pc).Name() == encodeFuncName {
			return false
		}
	}
	return true
}

package report

import (
	"strings"
)

// MalformedResponseError reports a generation payload that does not satisfy
// the report contract. Problems lists every violation found, in field order.
type MalformedResponseError struct {
	Problems []string
	Err      error // decode error, if the payload was not JSON
}

func (e *MalformedResponseError) Error() string {
	var b strings.Builder
	b.WriteString("malformed response")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Problems) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Problems, "; "))
	}
	return b.String()
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

package report

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns wall-clock time in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// IDFunc generates record identifiers.
type IDFunc func(now time.Time) string

// NewID returns a ULID whose time component is now. Instants outside the
// ULID range (before 1970) use the wall clock instead.
func NewID(now time.Time) string {
	id, err := ulid.New(ulid.Timestamp(now), ulid.DefaultEntropy())
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

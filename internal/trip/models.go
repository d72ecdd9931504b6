package trip

import (
	"errors"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("trip not found")
	ErrForbidden  = errors.New("trip belongs to another user")

	// ErrNotSynchronized refuses mutations after a failed Synchronize.
	ErrNotSynchronized = errors.New("trip store is not synchronized with the remote snapshot")
)

// Trip is one logged bus ride. Date and Time are kept as written so a
// malformed historical row survives a round trip through the store.
type Trip struct {
	ID          string    `json:"id"`
	User        string    `json:"user"`
	Line        string    `json:"line"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Origin      string    `json:"origin,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTrip is the input of Insert. Empty Date or Time default to the current
// instant.
type NewTrip struct {
	User        string `json:"user"`
	Line        string `json:"line"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Note        string `json:"note"`
}

// OccurredAt combines Date and Time into an instant in loc. ok is false when
// either part does not parse.
func (t Trip) OccurredAt(loc *time.Location) (time.Time, bool) {
	clock, ok := normalizeClock(t.Time)
	if !ok {
		return time.Time{}, false
	}
	at, err := time.ParseInLocation(DateLayout+" "+TimeLayout, strings.TrimSpace(t.Date)+" "+clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// normalizeClock truncates "HH:MM:SS[.fff]" to "HH:MM".
func normalizeClock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) > len(TimeLayout) {
		if s[len(TimeLayout)] != ':' {
			return "", false
		}
		s = s[:len(TimeLayout)]
	}
	if _, err := time.Parse(TimeLayout, s); err != nil {
		return "", false
	}
	return s, true
}

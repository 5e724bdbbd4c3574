package shared

import (
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies the owner of a progress record. The engine treats it as
// opaque; it only has to be a reasonable path/storage key.
type UserID string

var userIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@:-]{0,127}$`)

// IsValid checks if the user ID can be used as a record key.
func (u UserID) IsValid() bool {
	return userIDRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if uid == "" {
		return "", ErrEmptyUserID
	}
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "invalid user ID format")
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Day Value Object
// ═══════════════════════════════════════════════════════════════════════════

// DayLayout is the calendar-day format used for all streak and challenge dates.
const DayLayout = "2006-01-02"

// Day is a calendar day rendered as YYYY-MM-DD. The zero value means
// "never". Days compare correctly as strings.
type Day string

// ParseDay validates a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(DayLayout, s); err != nil {
		return "", WrapError("shared", "ParseDay", ErrInvalidInput, "day must be YYYY-MM-DD", err)
	}
	return Day(s), nil
}

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) Day {
	return Day(t.Format(DayLayout))
}

// IsZero reports whether no day is set.
func (d Day) IsZero() bool {
	return d == ""
}

// String returns the YYYY-MM-DD form.
func (d Day) String() string {
	return string(d)
}

// Previous returns the calendar day before d. An unparsable day yields "".
func (d Day) Previous() Day {
	t, err := time.Parse(DayLayout, string(d))
	if err != nil {
		return ""
	}
	return DayOf(t.AddDate(0, 0, -1))
}

// Before reports whether d is strictly earlier than other.
func (d Day) Before(other Day) bool {
	return d < other
}

// DaysUntil returns the number of calendar days from d to other
// (negative when other is earlier). Unparsable input yields 0.
func (d Day) DaysUntil(other Day) int {
	a, err := time.Parse(DayLayout, string(d))
	if err != nil {
		return 0
	}
	b, err := time.Parse(DayLayout, string(other))
	if err != nil {
		return 0
	}
	return int(b.Sub(a).Hours() / 24)
}

// ═══════════════════════════════════════════════════════════════════════════
// Percent Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percent is a completion value in [0, 100].
type Percent float64

// ClampPercent bounds v into [0, 100].
func ClampPercent(v float64) Percent {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return Percent(v)
	}
}

// Float64 returns the underlying value.
func (p Percent) Float64() float64 {
	return float64(p)
}

package timezone

import (
	"time"

	"github.com/billforge/billforge/internal/types"
)

// Context translates between an account's local calendar dates and UTC
// instants. It is constructed from a fixed reference instant (typically the
// subscription start) and the account's time zone, and captures two things at
// construction time:
//
//   - the account's UTC offset in effect at the reference instant. Local dates
//     derived through ComputeLocalDateFromFixedAccountOffset always use this
//     frozen offset so that day-of-month anchoring never drifts when a later
//     instant falls on the other side of a DST transition;
//   - the reference time-of-day in the account zone, which is re-applied when
//     projecting a local calendar date back to a UTC instant.
//
// ComputeUTCDateTimeFromLocalDate deliberately does NOT use the frozen offset:
// it resolves the target date under whatever offset the zone mandates on that
// date, so anniversaries land on the correct local wall-clock time even when
// the anniversary is in a different DST regime than the reference.
type Context struct {
	loc         *time.Location
	fixedOffset time.Duration
	refHour     int
	refMinute   int
	refSecond   int
}

// NewContext builds a timezone context from a reference instant and the
// account's time zone
func NewContext(referenceInstant time.Time, loc *time.Location) *Context {
	local := referenceInstant.In(loc)
	_, offsetSeconds := local.Zone()
	return &Context{
		loc:         loc,
		fixedOffset: time.Duration(offsetSeconds) * time.Second,
		refHour:     local.Hour(),
		refMinute:   local.Minute(),
		refSecond:   local.Second(),
	}
}

// NewFixedOffsetContext builds a context for an account zone expressed as a
// whole-hour UTC offset with no DST rules
func NewFixedOffsetContext(referenceInstant time.Time, offsetHours int) *Context {
	return NewContext(referenceInstant, time.FixedZone("", offsetHours*3600))
}

// ComputeUTCDateTimeFromLocalDate interprets localDate as a calendar date in
// the account's time zone, at the reference time-of-day, and returns the
// corresponding UTC instant. The offset is recomputed for the target date.
func (c *Context) ComputeUTCDateTimeFromLocalDate(localDate types.LocalDate) time.Time {
	local := time.Date(localDate.Year, localDate.Month, localDate.Day,
		c.refHour, c.refMinute, c.refSecond, 0, c.loc)
	return local.UTC()
}

// ComputeLocalDateFromFixedAccountOffset converts an instant to the account's
// local calendar date using the UTC offset frozen at construction time,
// regardless of the DST regime in effect at that instant.
func (c *Context) ComputeLocalDateFromFixedAccountOffset(instant time.Time) types.LocalDate {
	shifted := instant.UTC().Add(c.fixedOffset)
	return types.LocalDateFromTime(shifted)
}

// OffsetFromUTC returns the frozen offset captured at construction
func (c *Context) OffsetFromUTC() time.Duration {
	return c.fixedOffset
}

// Location returns the account's time zone
func (c *Context) Location() *time.Location {
	return c.loc
}

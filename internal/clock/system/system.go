// Package system provides a real clock implementation.
package system

import "time"

// Clock implements catalog.Clock using time.Now in a fixed location.
type Clock struct {
	loc *time.Location
}

// New creates a Clock that reports UTC.
func New() *Clock {
	return &Clock{loc: time.UTC}
}

// NewInLocation creates a Clock that reports wall time in loc.
// A nil loc falls back to UTC.
func NewInLocation(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// LoadLocation resolves an IANA zone name for NewInLocation.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	if c == nil || c.loc == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.loc)
}

// Location returns the clock's location.
func (c *Clock) Location() *time.Location {
	if c == nil || c.loc == nil {
		return time.UTC
	}
	return c.loc
}

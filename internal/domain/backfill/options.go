package backfill

import "time"

// Option configures a Backfiller.
type Option func(*Backfiller)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Backfiller) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLocation sets the zone event dates and times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(b *Backfiller) {
		if loc != nil {
			b.loc = loc
		}
	}
}

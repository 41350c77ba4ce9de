package monitor

import (
	"context"
	"errors"
)

// Announcer publishes a state change. prediction describes the next expected
// transition and is empty when there is nothing to predict. Announcements are
// fire-and-forget: the monitor logs errors and never retries.
type Announcer interface {
	Announce(ctx context.Context, open bool, prediction string) error
}

// Announcers fans an announcement out to every sink. All sinks are tried;
// their errors are joined.
type Announcers []Announcer

// Announce calls every announcer in order
func (a Announcers) Announce(ctx context.Context, open bool, prediction string) error {
	var errs []error
	for _, announcer := range a {
		if err := announcer.Announce(ctx, open, prediction); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

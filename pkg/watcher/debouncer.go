package watcher

import (
	"context"
	"time"

	"github.com/umsu/umsugraph/pkg/logging"
)

// Debouncer merges bursts of change events into one batch per change type.
// A batch is emitted after quietPeriod without new events, or after maxWait at the latest.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		quiet       <-chan time.Time
		deadline    <-chan time.Time
		accumulated = make(map[ChangeType][]string)
		seen        = make(map[string]bool)
		eventCount  int
	)

	flush := func() {
		quiet, deadline = nil, nil
		if eventCount == 0 {
			return
		}
		logging.Debug("flushing accumulated changes", "count", eventCount)

		// State first: it can change the dataset list itself
		for _, kind := range []ChangeType{ChangeTypeState, ChangeTypeGroups, ChangeTypeDataset} {
			if paths := accumulated[kind]; len(paths) > 0 {
				d.output <- ChangeEvent{Type: kind, Paths: paths, Timestamp: time.Now()}
			}
		}
		accumulated = make(map[ChangeType][]string)
		seen = make(map[string]bool)
		eventCount = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}
			for _, p := range event.Paths {
				if !seen[p] {
					seen[p] = true
					accumulated[event.Type] = append(accumulated[event.Type], p)
				}
			}
			eventCount++

			quiet = time.After(d.quietPeriod)
			if deadline == nil {
				deadline = time.After(d.maxWait)
			}

		case <-quiet:
			flush()

		case <-deadline:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}

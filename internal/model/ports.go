package model

import (
	"context"
	"time"
)

// ── Port Interfaces ──
// These interfaces decouple the detection core and the scanner host from
// concrete bar/storage implementations (in-memory series, Redis, SQLite).

// BarSource is the bar-data contract the detection core reads from, indexable
// by integer position. Indices are strictly increasing in time with no gaps.
type BarSource interface {
	// Len returns the number of bars available.
	Len() int

	// High returns the high price of the bar at index i, in cents.
	High(i int) int64

	// Low returns the low price of the bar at index i, in cents.
	Low(i int) int64

	// OpenTime returns the open time of the bar at index i.
	OpenTime(i int) time.Time

	// CloseTime returns the close time of the bar at index i.
	CloseTime(i int) time.Time

	// IndexOfTime returns the index of the last bar whose open time is not
	// after ts, or -1 if no such bar exists.
	IndexOfTime(ts time.Time) int
}

// SignalJournal persists emitted signals for audit and later analysis.
type SignalJournal interface {
	// RecordSignal appends one signal to the journal.
	RecordSignal(sig Signal) error

	// Close releases underlying resources.
	Close() error
}

// SignalPublisher pushes signals to downstream consumers (e.g. Redis).
type SignalPublisher interface {
	// PublishSignal publishes one signal.
	PublishSignal(ctx context.Context, sig Signal) error

	// Close releases underlying resources.
	Close() error
}

// BarConsumer consumes finalized bars from a stream (e.g. Redis Streams).
type BarConsumer interface {
	// EnsureConsumerGroup creates consumer groups on the given streams.
	EnsureConsumerGroup(ctx context.Context, streams []string) error

	// ConsumeBars reads bars via consumer groups into out.
	// Blocks until ctx is cancelled.
	ConsumeBars(ctx context.Context, streams []string, out chan<- Bar) error

	// ReplayFromID reads all messages from a stream starting at a given ID,
	// returning the last ID read.
	ReplayFromID(ctx context.Context, stream, startID string, out chan<- Bar) (string, error)

	// Close releases underlying resources.
	Close() error
}

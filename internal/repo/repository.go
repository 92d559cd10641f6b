package repo

import (
	"context"

	"github.com/hamed0406/masterstatus/internal/domain"
)

// SnapshotSink receives every completed scan.
type SnapshotSink interface {
	Publish(ctx context.Context, snap domain.Snapshot) error
}

// SnapshotStore keeps the latest snapshot for readers.
// Latest reports false until the first Publish.
type SnapshotStore interface {
	SnapshotSink
	Latest(ctx context.Context) (domain.Snapshot, bool, error)
}

// SinkFunc adapts a plain function to SnapshotSink.
type SinkFunc func(ctx context.Context, snap domain.Snapshot) error

func (f SinkFunc) Publish(ctx context.Context, snap domain.Snapshot) error { return f(ctx, snap) }

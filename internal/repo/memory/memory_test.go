package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hamed0406/masterstatus/internal/domain"
)

func snap(at time.Time, ids ...string) domain.Snapshot {
	protos := []domain.Protocol{domain.ProtocolTCP}
	out := domain.Snapshot{GeneratedAt: at, Protocols: protos}
	for _, id := range ids {
		out.Statuses = append(out.Statuses, domain.NewServerStatus(
			domain.ServerDescriptor{ID: id, Address: id + ".example"},
			protos,
			[]domain.ProbeResult{{Protocol: domain.ProtocolTCP, Up: true}},
		))
	}
	return out
}

func TestMemoryStore_EmptyUntilPublish(t *testing.T) {
	s := New()
	if _, ok, err := s.Latest(context.Background()); err != nil || ok {
		t.Fatalf("expected no snapshot yet, ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore_PublishReplacesLatest(t *testing.T) {
	ctx := context.Background()
	s := New()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Publish(ctx, snap(t0, "1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := s.Publish(ctx, snap(t0.Add(time.Minute), "1", "2")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, ok, err := s.Latest(ctx)
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if len(got.Statuses) != 2 || !got.GeneratedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("unexpected latest: %+v", got)
	}
	if s.Scans() != 2 {
		t.Fatalf("expected 2 scans, got %d", s.Scans())
	}
}

func TestMemoryStore_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Publish(ctx, snap(time.Now(), "1"))
		}()
		go func() {
			defer wg.Done()
			_, _, _ = s.Latest(ctx)
		}()
	}
	wg.Wait()

	if s.Scans() != 8 {
		t.Fatalf("expected 8 scans, got %d", s.Scans())
	}
}

package datalayer_test

import (
	"context"
	"testing"
	"time"

	"github.com/glizzus/clutch/internal/datalayer"
	"github.com/google/go-cmp/cmp"
)

func TestPurgeOlderThan(t *testing.T) {
	ctx := context.Background()
	storage := datalayer.NewMemoryStorage()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	put := func(key string, at time.Time) {
		storage.SetClock(func() time.Time { return at })
		if err := datalayer.PutBytes(ctx, storage, key, []byte("x"), "application/octet-stream"); err != nil {
			t.Fatalf("failed to put %s: %v", key, err)
		}
	}

	put("recordings/u1/old.mp3", now.Add(-48*time.Hour))
	put("recordings/u1/new.mp3", now.Add(-time.Hour))
	put("reports/u1/old.pdf", now.Add(-72*time.Hour))
	put("coach/u1/old.mp3", now.Add(-72*time.Hour))
	put("other/old.bin", now.Add(-72*time.Hour))

	removed, err := datalayer.PurgeOlderThan(ctx, storage, now.Add(-24*time.Hour), datalayer.RecordingsPrefix, datalayer.ReportsPrefix)
	if err != nil {
		t.Fatalf("PurgeOlderThan returned error: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed blobs, got %d", removed)
	}

	infos, err := storage.List(ctx, "")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	var keys []string
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	want := []string{"coach/u1/old.mp3", "other/old.bin", "recordings/u1/new.mp3"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("remaining keys mismatch (-want +got):\n%s", diff)
	}
}

package datalayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Prefixes under which per-user artifacts are archived.
const (
	RecordingsPrefix = "recordings/"
	ReportsPrefix    = "reports/"
	CoachPrefix      = "coach/"
)

// PurgeOlderThan removes every blob under the given prefixes last modified before
// cutoff. It keeps going past individual failures and returns how many blobs were
// removed together with the joined errors.
func PurgeOlderThan(ctx context.Context, storage BlobStorage, cutoff time.Time, prefixes ...string) (int, error) {
	var (
		removed int
		errs    []error
	)
	for _, prefix := range prefixes {
		blobs, err := storage.List(ctx, prefix)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to list %s: %w", prefix, err))
			continue
		}
		for _, blob := range blobs {
			if !blob.LastModified.Before(cutoff) {
				continue
			}
			if err := storage.Remove(ctx, blob.Key); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove %s: %w", blob.Key, err))
				continue
			}
			removed++
			slog.Debug("Removed expired blob", "key", blob.Key, "lastModified", blob.LastModified)
		}
	}
	return removed, errors.Join(errs...)
}

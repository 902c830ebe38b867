package health

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/zsiec/gre2g/internal/blobstore"
)

// StoreChecker verifies the blob store root mapping table can be read.
type StoreChecker struct {
	store blobstore.Store

	entries atomic.Int64
}

// NewStoreChecker creates a checker for store.
func NewStoreChecker(store blobstore.Store) *StoreChecker {
	return &StoreChecker{store: store}
}

func (s *StoreChecker) Name() string {
	return "blob_store"
}

func (s *StoreChecker) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names, err := s.store.GetLevelContent(nil)
	if err != nil {
		return fmt.Errorf("root level unreadable: %w", err)
	}
	s.entries.Store(int64(len(names)))
	return nil
}

// Details reports the root entry count from the last successful check.
func (s *StoreChecker) Details() map[string]interface{} {
	return map[string]interface{}{"root_entries": s.entries.Load()}
}

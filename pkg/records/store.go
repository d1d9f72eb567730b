package records

import (
	"context"
	"slices"

	"github.com/matzehuels/dagplanner/pkg/dag"
)

// Store persists records. Implementations are safe for concurrent use.
type Store interface {
	// Save inserts or replaces the record with r.ID.
	Save(ctx context.Context, r *Record) error

	// List returns the records of one layer, newest first.
	List(ctx context.Context, layer dag.Layer) ([]Record, error)

	// ListAll returns all records grouped by layer, newest first.
	ListAll(ctx context.Context) (map[dag.Layer][]Record, error)

	// Get returns the record with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Delete removes the record with id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	Close() error
}

func sortNewestFirst(recs []Record) {
	slices.SortStableFunc(recs, func(a, b Record) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}

func group(recs []Record) map[dag.Layer][]Record {
	out := make(map[dag.Layer][]Record)
	for _, r := range recs {
		out[r.LayerType] = append(out[r.LayerType], r)
	}
	for l := range out {
		sortNewestFirst(out[l])
	}
	return out
}

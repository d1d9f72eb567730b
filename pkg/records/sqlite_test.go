package records

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/dagplanner/pkg/dag"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	base := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	a := mustRecord(t, dag.LayerCode, "a.go --> b.go", base)
	b := mustRecord(t, dag.LayerCode, "a.go --> c.go", base.Add(time.Minute))
	c := mustRecord(t, dag.LayerFunction, "Goal --> Feature", base)
	for _, r := range []*Record{a, b, c} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	code, err := s.List(ctx, dag.LayerCode)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(code) != 2 || code[0].ID != b.ID || code[1].ID != a.ID {
		t.Fatalf("code records = %v, want newest first", ids(code))
	}

	// upsert replaces in place
	a.InputData.MermaidDag = "a.go --> z.go"
	a.Timestamp = base.Add(time.Hour)
	if err := s.Save(ctx, a); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.InputData.MermaidDag != "a.go --> z.go" {
		t.Errorf("MermaidDag = %q", got.InputData.MermaidDag)
	}

	all, err := s.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all[dag.LayerCode]) != 2 || all[dag.LayerCode][0].ID != a.ID {
		t.Errorf("code after upsert = %v", ids(all[dag.LayerCode]))
	}
	if len(all[dag.LayerFunction]) != 1 {
		t.Errorf("function records = %v", ids(all[dag.LayerFunction]))
	}

	if err := s.Delete(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete twice = %v, want ErrNotFound", err)
	}
}

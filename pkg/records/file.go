package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagplanner/pkg/dag"
	"github.com/matzehuels/dagplanner/pkg/remote"
)

const backupSuffix = ".backup.json"

// FileStore keeps one JSON document per record in a directory. Overwriting
// a record first copies the previous document to "<name>.backup.json".
// Documents written by other processes are picked up on the next listing.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger *log.Logger
}

// NewFileStore opens (and creates) the records directory.
func NewFileStore(dir string, logger *log.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create records dir: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// ProjectDir returns the records directory of a project root.
func ProjectDir(root string) string {
	return filepath.Join(root, ".EDATA", "dags")
}

// Dir returns the records directory.
func (s *FileStore) Dir() string { return s.dir }

// Save writes r, keeping a backup of an existing document with the same id.
func (s *FileStore) Save(_ context.Context, r *Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	r.FileName = FileName(r.LayerType, r.ID)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, r.FileName)
	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, backupPath(path)); err != nil {
			return fmt.Errorf("backup %s: %w", r.FileName, err)
		}
		s.logger.Debug("record backed up", "file", r.FileName)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	r.SizeBytes = int64(len(data))
	return nil
}

// List returns the records of one layer, newest first.
func (s *FileStore) List(ctx context.Context, layer dag.Layer) ([]Record, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return all[layer], nil
}

// ListAll reads every record document in the directory. Unreadable files
// are logged and skipped.
func (s *FileStore) ListAll(_ context.Context) (map[dag.Layer][]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var recs []Record
	for _, e := range entries {
		if e.IsDir() || !IsRecordFile(e.Name()) {
			continue
		}
		r, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable record", "file", e.Name(), "err", err)
			continue
		}
		recs = append(recs, *r)
	}
	return group(recs), nil
}

// Get returns the record with id.
func (s *FileStore) Get(_ context.Context, id string) (*Record, error) {
	path, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return s.read(path)
}

// Delete removes the record and its backup.
func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := s.find(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	if err := os.Remove(backupPath(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close does nothing for the file store.
func (s *FileStore) Close() error { return nil }

// ReadFile decodes one record document.
func (s *FileStore) ReadFile(path string) (*Record, error) { return s.read(path) }

func (s *FileStore) find(id string) (string, error) {
	for _, l := range dag.Layers() {
		path := filepath.Join(s.dir, FileName(l, id))
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, id)
}

// fileDoc accepts documents whose timestamp has no zone.
type fileDoc struct {
	Record
	Timestamp string `json:"timestamp"`
}

func (s *FileStore) read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	r := doc.Record
	r.LayerType = dag.Layer(strings.ToLower(strings.TrimSpace(string(r.LayerType))))
	if !r.LayerType.Valid() {
		return nil, fmt.Errorf("unknown layer %q", r.LayerType)
	}
	r.FileName = filepath.Base(path)
	if r.ID == "" {
		r.ID = strings.TrimSuffix(strings.TrimPrefix(r.FileName, string(r.LayerType)+"_layer_"), ".json")
	}
	if r.LayerName == "" {
		r.LayerName = r.LayerType.Title()
	}
	r.SizeBytes = info.Size()
	if t, ok := remote.ParseTime(doc.Timestamp); ok {
		r.Timestamp = t
	} else if t, ok := remote.ParseTime(r.InputData.Timestamp); ok {
		r.Timestamp = t
	} else {
		r.Timestamp = info.ModTime().UTC()
	}
	return &r, nil
}

// IsRecordFile reports whether name looks like a record document.
func IsRecordFile(name string) bool {
	return strings.HasSuffix(name, ".json") &&
		!strings.HasSuffix(name, backupSuffix) &&
		!strings.HasPrefix(name, ".") &&
		strings.Contains(name, "_layer_")
}

func backupPath(path string) string {
	return strings.TrimSuffix(path, ".json") + backupSuffix
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var _ Store = (*FileStore)(nil)

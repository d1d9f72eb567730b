// Package projects remembers named project directories.
//
// The registry is a small YAML file (by default ~/.dagplanner/projects.yaml)
// mapping project names to root paths. The CLI resolves its --project flag
// through it, which scopes both the local cache keys and the project_path
// sent to the remote store. The most recently used project is the default
// when no name is given.
package projects

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	errs "github.com/matzehuels/dagplanner/pkg/errors"
)

const fileVersion = "1"

// ErrNotFound is returned when no project has the requested name.
var ErrNotFound = errors.New("project not found")

// Project is one registered project.
type Project struct {
	Name         string    `yaml:"-"`
	Path         string    `yaml:"path"`
	Description  string    `yaml:"description,omitempty"`
	AddedAt      time.Time `yaml:"added_at"`
	LastAccessed time.Time `yaml:"last_accessed"`
	AccessCount  int       `yaml:"access_count"`
}

type document struct {
	Version    string              `yaml:"version"`
	UpdatedAt  time.Time           `yaml:"updated_at"`
	LastActive string              `yaml:"last_active_project,omitempty"`
	Projects   map[string]*Project `yaml:"projects"`
}

// Registry is a file-backed project registry. Every call reads the file
// afresh, so concurrent CLI invocations see each other's changes.
type Registry struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// DefaultPath returns ~/.dagplanner/projects.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".dagplanner", "projects.yaml"), nil
}

// Open returns the registry stored at path. The file is created on the
// first write.
func Open(path string) *Registry {
	return &Registry{path: path, now: time.Now}
}

// Path returns the registry file.
func (r *Registry) Path() string { return r.path }

// Add registers (or re-registers) name for the directory at path and makes
// it the active project.
func (r *Registry) Add(name, path, description string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, errs.New(errs.ErrCodeInvalidInput, "project name cannot be empty")
	}
	abs, err := checkDir(path)
	if err != nil {
		return Project{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return Project{}, err
	}
	now := r.now().UTC()
	p, ok := doc.Projects[name]
	if !ok {
		p = &Project{AddedAt: now}
		doc.Projects[name] = p
	}
	p.Path = abs
	p.Description = description
	p.LastAccessed = now
	p.AccessCount++
	doc.LastActive = name
	if err := r.save(doc); err != nil {
		return Project{}, err
	}
	out := *p
	out.Name = name
	return out, nil
}

// Get returns the named project and marks it used. An empty name returns
// the most recently used project.
func (r *Registry) Get(name string) (Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return Project{}, err
	}
	if name == "" {
		name = doc.LastActive
	}
	p, ok := doc.Projects[name]
	if !ok || name == "" {
		return Project{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	p.LastAccessed = r.now().UTC()
	p.AccessCount++
	doc.LastActive = name
	if err := r.save(doc); err != nil {
		return Project{}, err
	}
	out := *p
	out.Name = name
	return out, nil
}

// List returns all projects sorted by name.
func (r *Registry) List() ([]Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(doc.Projects))
	for name, p := range doc.Projects {
		cp := *p
		cp.Name = name
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b Project) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Active returns the name of the most recently used project, or "".
func (r *Registry) Active() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return "", err
	}
	return doc.LastActive, nil
}

// Remove forgets the named project.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Projects[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(doc.Projects, name)
	if doc.LastActive == name {
		doc.LastActive = ""
	}
	return r.save(doc)
}

// Resolve turns a --project value into a root directory: a registered name
// yields its path, anything else must be an existing directory.
func (r *Registry) Resolve(nameOrPath string) (string, error) {
	if nameOrPath != "" {
		if p, err := r.Get(nameOrPath); err == nil {
			return p.Path, nil
		} else if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return checkDir(nameOrPath)
}

func (r *Registry) load() (*document, error) {
	doc := &document{Version: fileVersion, Projects: make(map[string]*Project)}
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project registry: %w", err)
	}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "parse %s", r.path)
	}
	if doc.Projects == nil {
		doc.Projects = make(map[string]*Project)
	}
	return doc, nil
}

func (r *Registry) save(doc *document) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	doc.Version = fileVersion
	doc.UpdatedAt = r.now().UTC()
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal project registry: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write project registry: %w", err)
	}
	return os.Rename(tmp, r.path)
}

func checkDir(path string) (string, error) {
	if err := errs.ValidateProjectPath(path); err != nil {
		return "", err
	}
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errs.Wrap(errs.ErrCodeInvalidPath, err, "resolve %s", path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errs.Wrap(errs.ErrCodeInvalidPath, err, "project directory %s", abs)
	}
	if !info.IsDir() {
		return "", errs.New(errs.ErrCodeInvalidPath, "%s is not a directory", abs)
	}
	return abs, nil
}

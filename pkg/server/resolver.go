package server

import (
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/records"
)

// Resolver maps the project_path query parameter to the record store that
// serves it and the directory reported to clients ("" for databases).
type Resolver func(projectPath string) (st records.Store, dir string, err error)

// Single serves every project from one store.
func Single(st records.Store, dir string) Resolver {
	return func(string) (records.Store, string, error) { return st, dir, nil }
}

// ProjectFiles serves each project from a [records.FileStore] under
// "<project>/.EDATA/dags". An empty project path means defaultRoot.
// Stores are opened once and reused.
func ProjectFiles(defaultRoot string, logger *log.Logger) Resolver {
	var (
		mu     sync.Mutex
		stores = make(map[string]*records.FileStore)
	)
	return func(projectPath string) (records.Store, string, error) {
		if err := errs.ValidateProjectPath(projectPath); err != nil {
			return nil, "", err
		}
		root := projectPath
		if root == "" {
			root = defaultRoot
		}
		root, err := filepath.Abs(root)
		if err != nil {
			return nil, "", errs.Wrap(errs.ErrCodeInvalidPath, err, "resolve project path")
		}

		mu.Lock()
		defer mu.Unlock()
		if st, ok := stores[root]; ok {
			return st, st.Dir(), nil
		}
		st, err := records.NewFileStore(records.ProjectDir(root), logger)
		if err != nil {
			return nil, "", err
		}
		stores[root] = st
		return st, st.Dir(), nil
	}
}

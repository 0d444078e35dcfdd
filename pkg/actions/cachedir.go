package actions

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/dchest/uniuri"
	"github.com/sirupsen/logrus"
)

// A CacheDirManager hands out act cache directories. Every concurrent act
// invocation needs its own cache dir: act's action download cache is not
// process safe.
// See https://github.com/nektos/act/issues/1885
type CacheDirManager struct {
	mu sync.Mutex

	root       string
	defaultDir string

	// Maps managed cache dirs to whether they are currently free
	dirs map[string]bool
}

// NewCacheDirManager creates a manager rooted at the given directory and
// pre-creates n managed cache dirs.
func NewCacheDirManager(root string, n int) (*CacheDirManager, error) {
	m := &CacheDirManager{
		root:       root,
		defaultDir: filepath.Join(root, "default"),
		dirs:       make(map[string]bool),
	}

	if err := os.MkdirAll(filepath.Join(m.defaultDir, "act"), 0755); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		dir := filepath.Join(root, uniuri.New())
		if err := os.MkdirAll(filepath.Join(dir, "act"), 0755); err != nil {
			return nil, err
		}
		m.dirs[dir] = true
	}

	return m, nil
}

// Acquire returns a free act cache dir. If none is available the caller gets
// an unmanaged one-off dir, which is deleted again on Return.
func (m *CacheDirManager) Acquire() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.dirs) == 0 {
		logrus.Warn("Using the default act cache dir. Concurrent runs must use separate caches.")
		return m.defaultDir
	}

	for dir, free := range m.dirs {
		if free {
			m.dirs[dir] = false
			return dir
		}
	}

	logrus.Warn("No act cache dir is available, using a one-off dir")
	dir := filepath.Join(m.root, uniuri.New())
	if err := os.MkdirAll(filepath.Join(dir, "act"), 0755); err != nil {
		logrus.Errorf("Couldn't create one-off act cache dir %s - %v", dir, err)
	}
	return dir
}

// Return frees up a cache dir acquired with Acquire.
func (m *CacheDirManager) Return(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dir == m.defaultDir {
		return
	}
	if _, managed := m.dirs[dir]; managed {
		m.dirs[dir] = true
		return
	}
	os.RemoveAll(dir)
}

// CacheAction downloads the given action into the default cache dir and links
// it into every managed cache dir, so offline runs find it.
func (m *CacheDirManager) CacheAction(ref ActionRef) error {
	dirName := ref.CacheDirName()
	actionDir := filepath.Join(m.defaultDir, "act", dirName)
	if err := ref.Download(actionDir); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for dir := range m.dirs {
		link := filepath.Join(dir, "act", dirName)
		if _, err := os.Lstat(link); err == nil {
			continue
		}
		if err := os.Symlink(actionDir, link); err != nil {
			return err
		}
	}
	return nil
}

package gitbug

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// A Dataset is the static collection of reproducible bugs, loaded from
// <dataDir>/bugs/<pid>.json files holding one JSON record per line.
type Dataset struct {
	DataDir string

	projects map[string]*Project
	pids     []string
}

// LoadDataset reads every project file below dataDir.
func LoadDataset(dataDir string) (*Dataset, error) {
	bugsDir := filepath.Join(dataDir, "bugs")
	entries, err := os.ReadDir(bugsDir)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("couldn't read dataset directory %s", bugsDir), err)
	}

	dataset := &Dataset{
		DataDir:  dataDir,
		projects: make(map[string]*Project),
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := dataset.loadProjectFile(filepath.Join(bugsDir, entry.Name())); err != nil {
			return nil, err
		}
	}

	sort.Strings(dataset.pids)
	return dataset, nil
}

func (d *Dataset) loadProjectFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// Records carry full patches and can get large
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		record := strings.TrimSpace(scanner.Text())
		if record == "" {
			continue
		}
		bug, err := ParseBug([]byte(record))
		if err != nil {
			logrus.Warnf("Skipping invalid record %s:%d - %v", path, line, err)
			continue
		}

		pid := bug.PID()
		project, ok := d.projects[pid]
		if !ok {
			project = newProject(pid)
			d.projects[pid] = project
			d.pids = append(d.pids, pid)
		}
		project.addBug(bug)
	}
	if err := scanner.Err(); err != nil {
		return errors.Join(fmt.Errorf("couldn't read project file %s", path), err)
	}
	return nil
}

// ProjectIDs returns every project id, sorted.
func (d *Dataset) ProjectIDs() []string {
	return append([]string(nil), d.pids...)
}

// Project returns the project with the given id, or nil.
func (d *Dataset) Project(pid string) *Project {
	return d.projects[pid]
}

// BugIDs returns every bug id, optionally restricted to one project. An
// unknown pid is an error, since silently returning nothing would hide typos.
func (d *Dataset) BugIDs(pid string) ([]string, error) {
	if pid != "" {
		project := d.projects[pid]
		if project == nil {
			return nil, fmt.Errorf("unknown project id %s", pid)
		}
		return project.BugIDs(), nil
	}

	var bids []string
	for _, pid := range d.pids {
		bids = append(bids, d.projects[pid].BugIDs()...)
	}
	return bids, nil
}

// Bug returns the bug with the given id, searching every project.
func (d *Dataset) Bug(bid string) *Bug {
	for _, project := range d.projects {
		if bug := project.Bug(bid); bug != nil {
			return bug
		}
	}
	return nil
}

// DiffDir returns the directory holding the bug's stored environment diff and
// default workflow.
func (d *Dataset) DiffDir(bug *Bug) string {
	return filepath.Join(d.DataDir, bug.PID(), bug.CommitHash)
}

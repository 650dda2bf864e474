package datasets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// ProjectRootIndicator marks the project root directory.
	ProjectRootIndicator = ".project-root"

	// ProjectRootEnv overrides project root discovery when set.
	ProjectRootEnv = "PROJECT_ROOT"

	dataDirName = "data"
)

// ErrProjectRootNotFound is returned when no ancestor directory contains the
// project root indicator.
var ErrProjectRootNotFound = errors.New("project root not found")

// FindProjectRoot walks from start towards the filesystem root and returns the
// first directory containing an entry named indicator.
func FindProjectRoot(start, indicator string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, indicator)); err == nil {
			return dir, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %s: %w", filepath.Join(dir, indicator), err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no %q above %s", ErrProjectRootNotFound, indicator, start)
		}
		dir = parent
	}
}

// ProjectRoot returns $PROJECT_ROOT when set, otherwise the closest ancestor of
// the working directory holding ProjectRootIndicator.
func ProjectRoot() (string, error) {
	if root := os.Getenv(ProjectRootEnv); root != "" {
		return root, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindProjectRoot(wd, ProjectRootIndicator)
}

// DataPath returns <project_root>/data/<name>.
func DataPath(name string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, dataDirName, name), nil
}

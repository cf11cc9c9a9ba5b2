package target

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grovetools/wsync/pkg/workspace"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

const defaultScanDepth = 3

// ScanOptions are the options of directory and git locations.
type ScanOptions struct {
	// MaxDepth bounds how deep below the location root projects are searched.
	MaxDepth int `yaml:"max_depth"`
	// Prefix is prepended to every discovered project name.
	Prefix string `yaml:"prefix"`
	// Subdir restricts a git location's scan to a directory of the checkout.
	Subdir string `yaml:"subdir"`
	// TokenEnv names an environment variable holding an HTTPS token for git.
	TokenEnv string `yaml:"token_env"`
}

// Scanner discovers project directories by their marker files.
type Scanner struct {
	Markers []string
	logger  *logrus.Entry
}

// NewScanner creates a scanner for the given marker file names.
func NewScanner(markers []string, logger *logrus.Entry) *Scanner {
	return &Scanner{Markers: markers, logger: logger}
}

// Scan walks root and returns one project unit per directory holding a
// marker. Projects are not searched for nested projects.
func (s *Scanner) Scan(ctx context.Context, root string, loc Location, opts ScanOptions) ([]workspace.Unit, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	include, err := patternmatcher.New(loc.Include)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	exclude, err := patternmatcher.New(loc.Exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultScanDepth
	}

	var projects []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel != "." {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if excluded, _ := exclude.MatchesOrParentMatches(rel); excluded {
				return filepath.SkipDir
			}
		}

		if s.isProject(path) {
			if len(loc.Include) == 0 || matches(include, rel, filepath.Base(path)) {
				projects = append(projects, path)
			}
			return filepath.SkipDir // Don't descend into a project
		}

		if rel != "." && strings.Count(rel, "/")+1 >= maxDepth {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(projects)
	seen := make(map[string]string, len(projects))
	units := make([]workspace.Unit, 0, len(projects))
	for _, dir := range projects {
		name := opts.Prefix + filepath.Base(dir)
		if prev, dup := seen[name]; dup {
			s.logger.WithFields(logrus.Fields{
				"location": loc.Name,
				"project":  name,
				"kept":     prev,
				"skipped":  dir,
			}).Warn("Duplicate project name in location")
			continue
		}
		seen[name] = dir
		units = append(units, workspace.ProjectUnit(name, dir))
	}
	return units, nil
}

func (s *Scanner) isProject(dir string) bool {
	for _, marker := range s.Markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

func matches(pm *patternmatcher.PatternMatcher, rel, base string) bool {
	if ok, _ := pm.MatchesOrParentMatches(rel); ok {
		return true
	}
	ok, _ := pm.MatchesOrParentMatches(base)
	return ok
}

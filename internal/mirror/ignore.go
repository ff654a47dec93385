package mirror

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const ignoreFileName = ".mirrorignore"

var defaultIgnorePatterns = []string{
	ignoreFileName,

	// OS droppings
	"**/.DS_Store",
	"**/Thumbs.db",
	"**/desktop.ini",

	// editor/temp leftovers
	"**/*.tmp",
	"**/*.swp",
	"**/*.swo",
	"**/~$*",
	"**/*.partial",
}

// IgnoreList decides which relative paths the scanner leaves out of
// snapshots. Patterns are doublestar globs matched against the normalized
// relative path; a `.mirrorignore` file at the watched root adds to the
// defaults.
type IgnoreList struct {
	root     string
	patterns []string
}

func NewIgnoreList(root string) *IgnoreList {
	patterns := make([]string, len(defaultIgnorePatterns))
	copy(patterns, defaultIgnorePatterns)
	return &IgnoreList{root: root, patterns: patterns}
}

// Load reads the root's ignore file if present. A missing file is fine.
func (l *IgnoreList) Load() error {
	f, err := os.Open(filepath.Join(l.root, ignoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		l.patterns = append(l.patterns, line)
	}
	return scanner.Err()
}

// Add appends extra patterns, e.g. from configuration.
func (l *IgnoreList) Add(patterns ...string) {
	l.patterns = append(l.patterns, patterns...)
}

func (l *IgnoreList) Match(relPath string) bool {
	for _, pattern := range l.patterns {
		if doublestar.MatchUnvalidated(pattern, relPath) {
			return true
		}
	}
	return false
}

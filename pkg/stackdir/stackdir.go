// Package stackdir enumerates the compose-stack directories under the stacks
// root. A stack is any visible directory; its name is the directory basename
// and doubles as the compose project name.
package stackdir

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stackvault/stackvault/pkg/plog"
)

// List returns the names of all visible stack directories under root, sorted
// ascending. Files and hidden entries are skipped. A missing or unreadable
// root logs an error and yields an empty list; it never fails the caller.
func List(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		plog.Error("Could not list stacks", "root", root, "error", err)
		return []string{}
	}

	var stacks []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		stacks = append(stacks, entry.Name())
	}
	sort.Strings(stacks)
	if stacks == nil {
		return []string{}
	}
	return stacks
}

// Path returns the directory of the named stack under root.
func Path(root, name string) string {
	return filepath.Join(root, name)
}

// Exists reports whether the named stack directory is present under root.
func Exists(root, name string) bool {
	info, err := os.Stat(Path(root, name))
	return err == nil && info.IsDir()
}

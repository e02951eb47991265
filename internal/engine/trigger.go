package engine

import (
	"os"
	"path/filepath"
)

const triggerFileName = ".trigger"

// consumeTrigger removes <mountpoint>/.trigger if present and reports
// whether it fired. An unreadable file, or a mountpoint that isn't set, is
// a no-op rather than an error (spec "Trigger semantics": "If the file is
// unreadable or its parent is not a mountpoint, the tick is a no-op").
func consumeTrigger(mountpoint string) bool {
	if mountpoint == "" {
		return false
	}

	path := filepath.Join(mountpoint, triggerFileName)
	if _, err := os.Stat(path); err != nil {
		return false
	}
	if err := os.Remove(path); err != nil {
		return false
	}
	return true
}

package git

import (
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// ParseUnifiedDiff extracts the changed paths of a unified (git) diff.
func ParseUnifiedDiff(data []byte) ([]Change, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	fileDiffs, err := godiff.ParseMultiFileDiff(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}

	changes := make([]Change, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		oldPath, newPath := cleanPath(fd.OrigName), cleanPath(fd.NewName)

		switch {
		case newPath == "":
			changes = append(changes, Change{Path: oldPath, Type: ChangeDeleted})
		case oldPath == "":
			changes = append(changes, Change{Path: newPath, Type: ChangeAdded})
		case oldPath != newPath:
			changes = append(changes, Change{Path: newPath, OldPath: oldPath, Type: ChangeRenamed})
		default:
			changes = append(changes, Change{Path: newPath, Type: ChangeModified})
		}
	}
	return changes, nil
}

// cleanPath removes the a/ or b/ prefix from git diff paths. /dev/null
// becomes "".
func cleanPath(path string) string {
	if path == "" || path == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}

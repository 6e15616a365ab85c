package git

import (
	"errors"
	"fmt"
	"strings"
)

// Source selects where a change set comes from. At most one of Staged,
// Range and Diff may be set; the zero Source means the working tree.
type Source struct {
	Staged bool
	Range  string // "from..to"
	Diff   []byte // unified diff text; paths are relative to the worktree root
}

// ErrConflictingSources is returned when more than one change source is set.
var ErrConflictingSources = errors.New("only one of staged, range and diff may be given")

// CollectChanges lists the absolute paths changed according to src.
// Deleted files are omitted.
func CollectChanges(ops Operations, projectPath string, src Source) ([]string, error) {
	set := 0
	for _, on := range []bool{src.Staged, src.Range != "", src.Diff != nil} {
		if on {
			set++
		}
	}
	if set > 1 {
		return nil, ErrConflictingSources
	}

	root := ops.GetWorktreeRoot(projectPath)

	var (
		changes []Change
		err     error
	)
	switch {
	case src.Diff != nil:
		changes, err = ParseUnifiedDiff(src.Diff)
	case src.Staged:
		changes, err = ops.StagedChanges(projectPath)
	case src.Range != "":
		from, to, ok := strings.Cut(src.Range, "..")
		if !ok || from == "" || strings.HasPrefix(to, ".") {
			return nil, fmt.Errorf("invalid range %q: expected from..to", src.Range)
		}
		if to == "" {
			to = "HEAD"
		}
		changes, err = ops.RangeChanges(projectPath, from, to)
	default:
		changes, err = ops.WorkingTreeChanges(projectPath)
	}
	if err != nil {
		return nil, err
	}
	return ChangedPaths(root, changes), nil
}

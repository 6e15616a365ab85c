package git

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ChangeType classifies a changed path.
type ChangeType string

const (
	ChangeModified ChangeType = "modified"
	ChangeAdded    ChangeType = "added"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
)

// Change is one changed path, relative to the worktree root.
type Change struct {
	Path    string
	OldPath string // set for renames
	Type    ChangeType
}

// Operations defines the interface for git operations.
// This allows mocking git commands in tests.
type Operations interface {
	// GetCurrentBranch returns the current branch name.
	// For detached HEAD, returns "detached-{short-hash}".
	// Returns "unknown" if all git commands fail.
	GetCurrentBranch(projectPath string) string

	// GetWorktreeRoot returns the git worktree root path.
	// Falls back to projectPath if not a git repository.
	GetWorktreeRoot(projectPath string) string

	// WorkingTreeChanges lists uncommitted changes (git status --porcelain).
	WorkingTreeChanges(projectPath string) ([]Change, error)

	// StagedChanges lists changes staged for commit.
	StagedChanges(projectPath string) ([]Change, error)

	// RangeChanges lists changes between two commits.
	RangeChanges(projectPath, from, to string) ([]Change, error)
}

// gitOps is the real implementation using exec.Command.
type gitOps struct{}

// NewOperations returns the default git operations implementation.
func NewOperations() Operations {
	return &gitOps{}
}

func (g *gitOps) GetCurrentBranch(projectPath string) string {
	cmd := exec.Command("git", "branch", "--show-current")
	cmd.Dir = projectPath
	output, err := cmd.Output()
	if err != nil || len(strings.TrimSpace(string(output))) == 0 {
		// Might be detached HEAD
		cmd = exec.Command("git", "rev-parse", "--short", "HEAD")
		cmd.Dir = projectPath
		output, err = cmd.Output()
		if err != nil {
			return "unknown"
		}
		return "detached-" + strings.TrimSpace(string(output))
	}
	return strings.TrimSpace(string(output))
}

func (g *gitOps) GetWorktreeRoot(projectPath string) string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = projectPath
	output, err := cmd.Output()
	if err != nil {
		return projectPath
	}
	return strings.TrimSpace(string(output))
}

func (g *gitOps) WorkingTreeChanges(projectPath string) ([]Change, error) {
	output, err := run(projectPath, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return ParsePorcelain(output), nil
}

func (g *gitOps) StagedChanges(projectPath string) ([]Change, error) {
	output, err := run(projectPath, "diff", "--cached", "--name-status")
	if err != nil {
		return nil, err
	}
	return ParseNameStatus(output), nil
}

func (g *gitOps) RangeChanges(projectPath, from, to string) ([]Change, error) {
	output, err := run(projectPath, "diff", "--name-status", from+".."+to)
	if err != nil {
		return nil, err
	}
	return ParseNameStatus(output), nil
}

func run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(output), nil
}

// ParsePorcelain parses `git status --porcelain` (v1) output.
func ParsePorcelain(output string) []Change {
	var changes []Change
	for _, line := range strings.Split(output, "\n") {
		if len(strings.TrimSpace(line)) == 0 || len(line) < 4 {
			continue
		}
		status, path := line[:2], line[3:]

		c := Change{Path: unquotePath(path), Type: ChangeModified}
		switch {
		case strings.Contains(status, "D"):
			c.Type = ChangeDeleted
		case strings.Contains(status, "R"):
			c.Type = ChangeRenamed
			if oldPath, newPath, ok := strings.Cut(path, " -> "); ok {
				c.OldPath, c.Path = unquotePath(oldPath), unquotePath(newPath)
			}
		case strings.Contains(status, "A"), status == "??":
			c.Type = ChangeAdded
		}
		changes = append(changes, c)
	}
	return changes
}

// ParseNameStatus parses `git diff --name-status` output.
func ParseNameStatus(output string) []Change {
	var changes []Change
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(parts) < 2 || parts[0] == "" {
			continue
		}

		c := Change{Path: unquotePath(parts[1]), Type: ChangeModified}
		switch status := parts[0]; {
		case status == "A":
			c.Type = ChangeAdded
		case status == "D":
			c.Type = ChangeDeleted
		case strings.HasPrefix(status, "R"), strings.HasPrefix(status, "C"):
			if len(parts) >= 3 {
				c.OldPath, c.Path = c.Path, unquotePath(parts[2])
			}
			if strings.HasPrefix(status, "R") {
				c.Type = ChangeRenamed
			} else {
				c.Type = ChangeAdded
			}
		}
		changes = append(changes, c)
	}
	return changes
}

// ChangedPaths returns the absolute paths of changes that still exist,
// i.e. everything but deletions, joined to the worktree root.
func ChangedPaths(worktreeRoot string, changes []Change) []string {
	var paths []string
	for _, c := range changes {
		if c.Type == ChangeDeleted {
			continue
		}
		paths = append(paths, filepath.Join(worktreeRoot, filepath.FromSlash(c.Path)))
	}
	return paths
}

// unquotePath decodes git's C-style quoting of unusual paths.
func unquotePath(p string) string {
	p = strings.TrimSpace(p)
	if len(p) >= 2 && p[0] == '"' {
		if s, err := strconv.Unquote(p); err == nil {
			return s
		}
	}
	return p
}

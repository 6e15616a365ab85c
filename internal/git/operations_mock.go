package git

import "fmt"

// MockGitOps is a mock implementation of Operations for testing.
type MockGitOps struct {
	CurrentBranch string
	WorktreeRoot  string
	Working       []Change
	Staged        []Change
	Ranges        map[string][]Change // keyed by "from..to"
	Err           error
}

// NewMockGitOps creates a mock with sensible defaults.
func NewMockGitOps() *MockGitOps {
	return &MockGitOps{
		CurrentBranch: "main",
		WorktreeRoot:  "/tmp/test-repo",
		Ranges:        map[string][]Change{},
	}
}

func (m *MockGitOps) GetCurrentBranch(projectPath string) string {
	return m.CurrentBranch
}

func (m *MockGitOps) GetWorktreeRoot(projectPath string) string {
	return m.WorktreeRoot
}

func (m *MockGitOps) WorkingTreeChanges(projectPath string) ([]Change, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Working, nil
}

func (m *MockGitOps) StagedChanges(projectPath string) ([]Change, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Staged, nil
}

func (m *MockGitOps) RangeChanges(projectPath, from, to string) ([]Change, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	changes, ok := m.Ranges[from+".."+to]
	if !ok {
		return nil, fmt.Errorf("unknown range %s..%s", from, to)
	}
	return changes, nil
}

// String returns a human-readable representation of the mock state.
func (m *MockGitOps) String() string {
	return fmt.Sprintf("MockGitOps{branch=%s, root=%s, working=%d, staged=%d}",
		m.CurrentBranch, m.WorktreeRoot, len(m.Working), len(m.Staged))
}

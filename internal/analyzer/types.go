package analyzer

// CallEdge is one call expression found inside a function body.
type CallEdge struct {
	CalleeName    string   `json:"calleeName"`
	Receiver      string   `json:"receiver,omitempty"`     // object text of a member call, e.g. "prisma.user"
	ResolvedFile  string   `json:"resolvedFile,omitempty"` // absolute; empty when the target is outside the repository
	TargetName    string   `json:"targetName,omitempty"`   // exported name when imported under an alias
	IsAsync       bool     `json:"isAsync"`
	ArgumentTexts []string `json:"argumentTexts"`
}

// Resolved reports whether the call target was resolved to an in-repo file.
func (e CallEdge) Resolved() bool {
	return e.ResolvedFile != ""
}

// Target is the name of the called function in ResolvedFile. It differs from
// CalleeName for aliased imports such as import { a as b }.
func (e CallEdge) Target() string {
	if e.TargetName != "" {
		return e.TargetName
	}
	return e.CalleeName
}

// Function is a named function and the calls made from its body.
type Function struct {
	Name  string
	Line  int // 1-based start line of the first definition
	Edges []CallEdge
}

// BindingKind identifies how an import binds its local name.
type BindingKind string

const (
	BindingDefault   BindingKind = "default"
	BindingNamed     BindingKind = "named"
	BindingNamespace BindingKind = "namespace"
	BindingRequire   BindingKind = "require"
)

// ImportBinding maps a local name to the module specifier it was imported from.
type ImportBinding struct {
	Local     string
	Imported  string // exported name; empty for default and namespace bindings
	Specifier string
	Kind      BindingKind
}

// FileFacts holds everything extracted from one source file.
type FileFacts struct {
	Path      string
	Functions map[string]*Function
	Order     []string // function names in definition order
	Imports   map[string]ImportBinding
}

// function returns the named function, creating it on first use.
func (f *FileFacts) function(name string, line int) *Function {
	if fn, ok := f.Functions[name]; ok {
		return fn
	}
	fn := &Function{Name: name, Line: line, Edges: []CallEdge{}}
	f.Functions[name] = fn
	f.Order = append(f.Order, name)
	return fn
}

// ProgressReporter receives parse progress.
type ProgressReporter interface {
	OnParseStart(totalFiles int)
	OnFileParsed(path string)
	OnParseComplete(parsed, failed int)
}

// NoOpProgressReporter ignores all progress.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnParseStart(int)         {}
func (NoOpProgressReporter) OnFileParsed(string)      {}
func (NoOpProgressReporter) OnParseComplete(int, int) {}

package analyzer

import (
	"fmt"
	"os"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// exportObjects are the CommonJS receivers whose function-valued properties
// define named functions.
var exportObjects = map[string]bool{
	"exports":        true,
	"module.exports": true,
}

// extractFile reads and parses a file and returns its unresolved facts.
func extractFile(path string) (*FileFacts, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return extractSource(path, source)
}

// extractSource extracts functions, call edges and import bindings from source.
// ResolvedFile is left empty on every edge.
func extractSource(path string, source []byte) (*FileFacts, error) {
	tree, err := parseSource(path, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("failed to parse %s: empty tree", path)
	}

	x := &extractor{
		source: source,
		facts: &FileFacts{
			Path:      path,
			Functions: make(map[string]*Function),
			Imports:   make(map[string]ImportBinding),
		},
	}
	x.visit(root, nil)
	return x.facts, nil
}

type extractor struct {
	source []byte
	facts  *FileFacts
}

// visit walks the tree in source order. current is the innermost enclosing
// named function, nil at module level.
func (x *extractor) visit(node *sitter.Node, current *Function) {
	switch node.Kind() {
	case "import_statement":
		x.addImport(node)
		return
	case "variable_declarator":
		x.addRequire(node)
	case "call_expression":
		if current != nil {
			current.Edges = append(current.Edges, x.callEdge(node))
		}
	}

	if name := x.definedName(node); name != "" {
		current = x.facts.function(name, startLine(node))
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(uint(i)); child != nil {
			x.visit(child, current)
		}
	}
}

// definedName returns the function name a node defines, or "".
func (x *extractor) definedName(node *sitter.Node) string {
	switch node.Kind() {
	case "function_declaration", "generator_function_declaration", "method_definition":
		return extractNodeText(node.ChildByFieldName("name"), x.source)

	case "variable_declarator":
		name := node.ChildByFieldName("name")
		if name != nil && name.Kind() == "identifier" && isFunctionValue(node.ChildByFieldName("value")) {
			return extractNodeText(name, x.source)
		}

	case "public_field_definition":
		if isFunctionValue(node.ChildByFieldName("value")) {
			return extractNodeText(node.ChildByFieldName("name"), x.source)
		}

	case "pair":
		if isFunctionValue(node.ChildByFieldName("value")) {
			return unquote(node.ChildByFieldName("key"), x.source)
		}

	case "assignment_expression":
		left := node.ChildByFieldName("left")
		if left == nil || left.Kind() != "member_expression" || !isFunctionValue(node.ChildByFieldName("right")) {
			return ""
		}
		if exportObjects[compactText(left.ChildByFieldName("object"), x.source)] {
			return extractNodeText(left.ChildByFieldName("property"), x.source)
		}
	}
	return ""
}

// callEdge builds an unresolved edge for a call_expression node.
func (x *extractor) callEdge(node *sitter.Node) CallEdge {
	edge := CallEdge{
		IsAsync:       isAwaited(node),
		ArgumentTexts: []string{},
	}

	fn := node.ChildByFieldName("function")
	switch {
	case fn == nil:
	case fn.Kind() == "identifier":
		edge.CalleeName = extractNodeText(fn, x.source)
	case fn.Kind() == "member_expression":
		edge.CalleeName = extractNodeText(fn.ChildByFieldName("property"), x.source)
		edge.Receiver = compactText(fn.ChildByFieldName("object"), x.source)
	default:
		edge.CalleeName = compactText(fn, x.source)
	}

	args := node.ChildByFieldName("arguments")
	if args == nil {
		return edge
	}
	if args.Kind() != "arguments" {
		// Tagged template: the template itself is the only argument
		edge.ArgumentTexts = append(edge.ArgumentTexts, compactText(args, x.source))
		return edge
	}
	for _, arg := range namedChildren(args) {
		edge.ArgumentTexts = append(edge.ArgumentTexts, compactText(arg, x.source))
	}
	return edge
}

// isAwaited reports whether a call sits inside an await expression of the
// same function.
func isAwaited(node *sitter.Node) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == "await_expression" {
			return true
		}
		if isFunctionBoundary(p) {
			return false
		}
	}
	return false
}

// addImport records the bindings of an ES import statement.
func (x *extractor) addImport(node *sitter.Node) {
	source := node.ChildByFieldName("source")

	// import x = require("y")
	if req := findChildByType(node, "import_require_clause"); req != nil {
		name := findChildByType(req, "identifier")
		spec := req.ChildByFieldName("source")
		if name != nil && spec != nil {
			x.bind(ImportBinding{Local: extractNodeText(name, x.source), Specifier: unquote(spec, x.source), Kind: BindingRequire})
		}
		return
	}

	clause := findChildByType(node, "import_clause")
	if source == nil || clause == nil {
		return
	}
	spec := unquote(source, x.source)

	for _, child := range namedChildren(clause) {
		switch child.Kind() {
		case "identifier":
			x.bind(ImportBinding{Local: extractNodeText(child, x.source), Specifier: spec, Kind: BindingDefault})

		case "namespace_import":
			if id := findChildByType(child, "identifier"); id != nil {
				x.bind(ImportBinding{Local: extractNodeText(id, x.source), Specifier: spec, Kind: BindingNamespace})
			}

		case "named_imports":
			for _, s := range namedChildren(child) {
				if s.Kind() != "import_specifier" {
					continue
				}
				imported := extractNodeText(s.ChildByFieldName("name"), x.source)
				local := imported
				if alias := s.ChildByFieldName("alias"); alias != nil {
					local = extractNodeText(alias, x.source)
				}
				x.bind(ImportBinding{Local: local, Imported: imported, Specifier: spec, Kind: BindingNamed})
			}
		}
	}
}

// addRequire records CommonJS bindings of the form
// const x = require("y") or const { a, b: c } = require("y").
func (x *extractor) addRequire(node *sitter.Node) {
	value := node.ChildByFieldName("value")
	if value != nil && value.Kind() == "await_expression" {
		value = value.NamedChild(0)
	}
	spec, ok := x.requireSpecifier(value)
	if !ok {
		return
	}

	name := node.ChildByFieldName("name")
	if name == nil {
		return
	}

	switch name.Kind() {
	case "identifier":
		x.bind(ImportBinding{Local: extractNodeText(name, x.source), Specifier: spec, Kind: BindingRequire})

	case "object_pattern":
		for _, p := range namedChildren(name) {
			switch p.Kind() {
			case "shorthand_property_identifier_pattern":
				id := extractNodeText(p, x.source)
				x.bind(ImportBinding{Local: id, Imported: id, Specifier: spec, Kind: BindingRequire})
			case "pair_pattern":
				key := p.ChildByFieldName("key")
				val := p.ChildByFieldName("value")
				if key != nil && val != nil && val.Kind() == "identifier" {
					x.bind(ImportBinding{
						Local:     extractNodeText(val, x.source),
						Imported:  unquote(key, x.source),
						Specifier: spec,
						Kind:      BindingRequire,
					})
				}
			}
		}
	}
}

// requireSpecifier matches require("spec") and dynamic import("spec").
func (x *extractor) requireSpecifier(node *sitter.Node) (string, bool) {
	if node == nil || node.Kind() != "call_expression" {
		return "", false
	}
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return "", false
	}
	if callee := extractNodeText(fn, x.source); callee != "require" && callee != "import" {
		return "", false
	}
	args := namedChildren(node.ChildByFieldName("arguments"))
	if len(args) == 0 || args[0].Kind() != "string" {
		return "", false
	}
	return unquote(args[0], x.source), true
}

// bind records a binding; the first binding of a local name wins.
func (x *extractor) bind(b ImportBinding) {
	if b.Local == "" || b.Specifier == "" {
		return
	}
	if _, exists := x.facts.Imports[b.Local]; !exists {
		x.facts.Imports[b.Local] = b
	}
}

package analyzer

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

var (
	tsLanguage  = sitter.NewLanguage(typescript.LanguageTypescript())
	tsxLanguage = sitter.NewLanguage(typescript.LanguageTSX())
)

// languageFor picks the grammar for a file. Plain JavaScript is parsed with the
// TSX grammar, which accepts JSX and is a superset of ES syntax.
func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return tsLanguage
	default:
		return tsxLanguage
	}
}

// parseSource parses source with a fresh parser. Parsers are not safe for
// concurrent use, so each call owns one.
func parseSource(path string, source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(languageFor(path)); err != nil {
		return nil, fmt.Errorf("set language for %s: %w", path, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", path)
	}
	return tree, nil
}

// extractNodeText extracts the text content of a tree-sitter node.
func extractNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// compactText collapses whitespace so multi-line expressions read as one line.
func compactText(node *sitter.Node, source []byte) string {
	return strings.Join(strings.Fields(extractNodeText(node, source)), " ")
}

// startLine returns the 1-based line a node starts on.
func startLine(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child != nil && child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// namedChildren returns the named children of node, skipping comments.
func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}

	var out []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(uint(i))
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// unquote strips the quotes of a string literal node's text.
func unquote(node *sitter.Node, source []byte) string {
	text := extractNodeText(node, source)
	if len(text) >= 2 {
		switch text[0] {
		case '"', '\'', '`':
			return text[1 : len(text)-1]
		}
	}
	return text
}

// isFunctionValue reports whether a node is a function literal.
func isFunctionValue(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Kind() {
	case "arrow_function", "function_expression", "function", "generator_function":
		return true
	}
	return false
}

// isFunctionBoundary reports whether a node starts a new function scope.
func isFunctionBoundary(node *sitter.Node) bool {
	switch node.Kind() {
	case "function_declaration", "generator_function_declaration", "method_definition":
		return true
	}
	return isFunctionValue(node)
}

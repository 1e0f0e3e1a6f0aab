package extract

import (
	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"mergemap/internal/parser"
	"mergemap/internal/types"
)

// Findings are the per-file results of declaration extraction.
type Findings struct {
	// Imports holds module specifiers of top-level import declarations,
	// in source order, duplicates preserved.
	Imports []string
	// Patterns holds one entry per class declaration or class expression
	// found anywhere in the file, in source order. Nested classes appear
	// as independent flat entries.
	Patterns []types.PatternFinding
}

// nodeKind is the closed variant set the extractor dispatches over.
type nodeKind int

const (
	kindOther nodeKind = iota
	kindImport
	kindClass
)

func classifyNode(nodeType string) nodeKind {
	switch nodeType {
	case "import_statement":
		return kindImport
	case "class_declaration", "abstract_class_declaration", "class":
		return kindClass
	default:
		return kindOther
	}
}

// Extract walks one file's syntax tree and collects import edges and
// class-shaped declarations. It performs no symbol resolution: only
// surface-level declarations are read.
func Extract(tree *parser.Tree) Findings {
	var f Findings
	root := tree.Root()
	src := tree.Source

	// Import declarations are recognized at the top level only. Dynamic
	// import() expressions and re-exports are not matched.
	for i := range root.NamedChildCount() {
		stmt := root.NamedChild(i)
		if classifyNode(stmt.Type()) != kindImport {
			continue
		}
		source := stmt.ChildByFieldName("source")
		if source.IsNull() {
			continue
		}
		f.Imports = append(f.Imports, unquote(source.Content(src)))
	}

	// Class patterns are collected from the whole tree so that nested and
	// default-exported classes are reported as flat entries.
	walkClasses(root, src, &f.Patterns)

	return f
}

func walkClasses(n sitter.Node, src []byte, out *[]types.PatternFinding) {
	if classifyNode(n.Type()) == kindClass {
		*out = append(*out, classPattern(n, src))
	}
	for i := range n.NamedChildCount() {
		walkClasses(n.NamedChild(i), src, out)
	}
}

func classPattern(n sitter.Node, src []byte) types.PatternFinding {
	// An anonymous class expression has no name field; the finding keeps
	// an empty name instead of failing.
	name := ""
	if nameNode := n.ChildByFieldName("name"); !nameNode.IsNull() {
		name = nameNode.Content(src)
	}

	var methods []string
	if body := n.ChildByFieldName("body"); !body.IsNull() {
		for i := range body.NamedChildCount() {
			member := body.NamedChild(i)
			if member.Type() != "method_definition" {
				continue
			}
			// Getter/setter accessors and fields are excluded; constructors
			// and ordinary/static/async methods are included.
			if isAccessor(member) {
				continue
			}
			if nameNode := member.ChildByFieldName("name"); !nameNode.IsNull() {
				methods = append(methods, nameNode.Content(src))
			}
		}
	}
	return types.ClassPattern(name, methods)
}

// isAccessor reports whether a method_definition carries a get/set keyword
// token. A method literally named "get" has a property_identifier name node
// instead, so it is not matched here.
func isAccessor(member sitter.Node) bool {
	for i := range member.ChildCount() {
		switch member.Child(i).Type() {
		case "get", "set":
			return true
		}
	}
	return false
}

func unquote(s string) string {
	if len(s) >= 2 {
		switch s[0] {
		case '\'', '"', '`':
			if s[len(s)-1] == s[0] {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}

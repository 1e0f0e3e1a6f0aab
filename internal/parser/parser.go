package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/typescript"
	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"mergemap/internal/types"
)

// Language selects the tree-sitter grammar for a source file.
type Language int

const (
	LangJavaScript Language = iota
	LangTypeScript
)

func (l Language) String() string {
	if l == LangTypeScript {
		return "typescript"
	}
	return "javascript"
}

// LanguageForPath maps a file path to its grammar. Only .js and .ts are
// parseable; everything else is handled upstream by scan.Classify.
func LanguageForPath(path string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js":
		return LangJavaScript, true
	case ".ts":
		return LangTypeScript, true
	}
	return 0, false
}

var (
	langOnce sync.Once
	langs    [2]*sitter.Language
)

func language(l Language) *sitter.Language {
	langOnce.Do(func() {
		langs[LangJavaScript] = sitter.NewLanguage(javascript.GetLanguage())
		langs[LangTypeScript] = sitter.NewLanguage(typescript.GetLanguage())
	})
	return langs[l]
}

// Tree is one file's parsed syntax tree together with its source bytes.
// Each Tree is owned by exactly one caller; Close releases the C-side tree.
type Tree struct {
	ts     *sitter.Tree
	Source []byte
}

// Root returns the root syntax node.
func (t *Tree) Root() sitter.Node { return t.ts.RootNode() }

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	if t != nil && t.ts != nil {
		t.ts.Close()
	}
}

// Parser parses JavaScript/TypeScript sources. Parser instances are pooled
// per language so concurrent per-file parses never share state.
type Parser struct {
	pools [2]sync.Pool
}

func New() *Parser {
	p := &Parser{}
	for i := range p.pools {
		lang := language(Language(i))
		p.pools[i] = sync.Pool{
			New: func() any {
				tsp := sitter.NewParser()
				tsp.SetLanguage(lang)
				return tsp
			},
		}
	}
	return p
}

// Parse converts one source file's text into a syntax tree. A tree whose
// root contains syntax errors is reported as *types.ParseError; the caller
// decides whether that aborts anything beyond this one file.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*Tree, error) {
	lang, ok := LanguageForPath(path)
	if !ok {
		return nil, fmt.Errorf("parser: no grammar for %s", path)
	}

	tsp, ok := p.pools[lang].Get().(*sitter.Parser)
	if !ok {
		return nil, fmt.Errorf("parser: pool returned unexpected type")
	}
	defer p.pools[lang].Put(tsp)

	tree, err := tsp.ParseString(ctx, nil, src)
	if err != nil {
		return nil, &types.ParseError{Path: path, Msg: err.Error()}
	}

	root := tree.RootNode()
	if root.IsNull() {
		tree.Close()
		return nil, &types.ParseError{Path: path, Msg: "no root node"}
	}
	if msg, bad := firstSyntaxError(root, src); bad {
		tree.Close()
		return nil, &types.ParseError{Path: path, Msg: msg}
	}
	return &Tree{ts: tree, Source: src}, nil
}

// firstSyntaxError walks the tree looking for ERROR nodes and reports the
// location of the first one found.
func firstSyntaxError(n sitter.Node, src []byte) (string, bool) {
	if n.Type() == "ERROR" {
		pt := n.StartPoint()
		return fmt.Sprintf("syntax error at line %d, column %d", pt.Row+1, pt.Column+1), true
	}
	for i := range n.NamedChildCount() {
		if msg, bad := firstSyntaxError(n.NamedChild(i), src); bad {
			return msg, true
		}
	}
	return "", false
}

package cparse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/alexaandru/go-sitter-forest/c"
	"github.com/alexaandru/go-sitter-forest/cpp"

	"github.com/Sumatoshi-tech/funcscan/pkg/csource"
)

var (
	// ErrUnsupportedLanguage is returned for files that are neither C nor C++.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrNoRootNode is returned when tree-sitter produces an empty tree.
	ErrNoRootNode = errors.New("parser produced no root node")

	errPoolType = errors.New("unexpected type in parser pool")
)

type grammar struct {
	language *sitter.Language
	pool     sync.Pool
}

// Parser extracts functions from C and C++ sources. Tree-sitter parsers are
// not safe for concurrent use, so each language keeps a pool of them; a
// Parser itself may be shared between goroutines.
type Parser struct {
	grammars map[csource.Language]*grammar
	resolver *csource.Resolver
}

// NewParser creates a parser. resolver may be nil, in which case includes
// are recorded but never resolved.
func NewParser(resolver *csource.Resolver) *Parser {
	parser := &Parser{
		grammars: map[csource.Language]*grammar{
			csource.LangC:   newGrammar(sitter.NewLanguage(c.GetLanguage())),
			csource.LangCPP: newGrammar(sitter.NewLanguage(cpp.GetLanguage())),
		},
		resolver: resolver,
	}

	return parser
}

func newGrammar(lang *sitter.Language) *grammar {
	g := &grammar{language: lang}
	g.pool = sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(lang)

			return tsParser
		},
	}

	return g
}

// Parse extracts functions, calls, includes and diagnostics from content.
// An empty file.Language is detected from the path and content.
func (p *Parser) Parse(ctx context.Context, file csource.SourceFile, content []byte) (*FileResult, error) {
	lang := file.Language
	if lang == "" {
		lang = csource.DetectContent(file.Path, content)
	}

	g, ok := p.grammars[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, file.Path)
	}

	tsParser, ok := g.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer g.pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file.Path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, fmt.Errorf("%w: %s", ErrNoRootNode, file.Path)
	}

	result := &FileResult{
		Path:      file.Path,
		Language:  lang,
		Functions: []Function{},
		Calls:     []Call{},
	}

	w := newWalker(result, content, lang == csource.LangCPP, p.resolver)
	w.collectNamespaces(root)
	w.walk(root)
	w.diagnose(root, false)

	return result, nil
}

// ParseCode parses an in-memory snippet under a synthetic file name.
func (p *Parser) ParseCode(ctx context.Context, name string, lang csource.Language, code string) (*FileResult, error) {
	return p.Parse(ctx, csource.SourceFile{Path: name, Language: lang, Size: int64(len(code))}, []byte(code))
}

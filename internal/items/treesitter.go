//go:build cgo

package items

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Extractor splits documents into items. It is safe for concurrent use: every call gets its
// own parser, compiled queries are shared.
type Extractor struct {
	mu      sync.Mutex
	queries map[Language]*sitter.Query
}

// NewExtractor creates a new item extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		queries: make(map[Language]*sitter.Query),
	}
}

// IsAvailable returns whether item extraction is available.
func IsAvailable() bool {
	return true
}

// Extract parses document and returns its maximal items keyed by start offset.
//
// The returned Map is never nil. When the document is not valid UTF-8, cannot be parsed or
// the query cannot be compiled, the Map is empty and the error describes why; callers treat
// this as "no items found".
func (e *Extractor) Extract(ctx context.Context, document []byte, lang Language) (Map, error) {
	out := make(Map)

	if !utf8.Valid(document) {
		return out, fmt.Errorf("document is not valid UTF-8")
	}

	tsLang, err := getLanguage(lang)
	if err != nil {
		return out, err
	}

	query, err := e.query(lang, tsLang)
	if err != nil {
		return out, err
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tsLang)

	tree, err := parser.ParseCtx(ctx, nil, document)
	if err != nil {
		return out, fmt.Errorf("parse error: %w", err)
	}
	defer tree.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, tree.RootNode())

	captures := query.CaptureCount()
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, c := range match.Captures {
			// Capture indices outside the query's table carry no name.
			name := ""
			if c.Index < captures {
				name = query.CaptureNameForId(c.Index)
			}
			if name != captureName || c.Node == nil {
				continue
			}

			start, end := int(c.Node.StartByte()), int(c.Node.EndByte())
			if start < 0 || end > len(document) || start > end {
				continue
			}
			content := document[start:end]
			if !utf8.Valid(content) {
				continue
			}
			out[start] = Item{StartByte: start, EndByte: end, Content: content}
		}
	}

	return maximal(out), nil
}

// query returns the compiled item query for a language, compiling it on first use.
func (e *Extractor) query(lang Language, tsLang *sitter.Language) (*sitter.Query, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if q, ok := e.queries[lang]; ok {
		return q, nil
	}

	pattern, err := QueryFor(lang)
	if err != nil {
		return nil, err
	}
	q, err := sitter.NewQuery([]byte(pattern), tsLang)
	if err != nil {
		return nil, fmt.Errorf("query compile error: %w", err)
	}
	e.queries[lang] = q
	return q, nil
}

// getLanguage returns the tree-sitter Language for a given language identifier.
func getLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangRust:
		return rust.GetLanguage(), nil
	case LangGo:
		return golang.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	case LangJava:
		return java.GetLanguage(), nil
	case LangKotlin:
		return kotlin.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

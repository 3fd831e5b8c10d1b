// Package items splits a source document into its top-level syntactic items via tree-sitter.
package items

import (
	"sort"
)

// Language represents a supported programming language.
type Language string

const (
	LangRust       Language = "rust"
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
	LangJava       Language = "java"
	LangKotlin     Language = "kotlin"
)

// captureName is the capture tag every item pattern binds to.
const captureName = "item"

// Item is one top-level syntactic unit. Content is a view into the parsed document, not a
// copy, and must not be mutated.
type Item struct {
	StartByte int    `json:"startByte"`
	EndByte   int    `json:"endByte"`
	Content   []byte `json:"-"`
}

// Len returns the byte length of the item.
func (it Item) Len() int {
	return it.EndByte - it.StartByte
}

// Map indexes the items of one document by their start offset.
type Map map[int]Item

// Keys returns the start offsets in ascending order.
func (m Map) Keys() []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// LanguageFromExtension returns the Language for a file extension.
func LanguageFromExtension(ext string) (Language, bool) {
	switch ext {
	case ".rs":
		return LangRust, true
	case ".go":
		return LangGo, true
	case ".js", ".mjs", ".cjs", ".jsx":
		return LangJavaScript, true
	case ".ts", ".mts", ".cts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	case ".py", ".pyw":
		return LangPython, true
	case ".java":
		return LangJava, true
	case ".kt", ".kts":
		return LangKotlin, true
	default:
		return "", false
	}
}

// maximal keeps only the items not contained in an earlier item. Nodes of one syntax tree
// are either disjoint or nested, so an item starting before the end of a kept item lies
// inside it.
func maximal(m Map) Map {
	out := make(Map, len(m))
	end := -1
	for _, k := range m.Keys() {
		it := m[k]
		if it.StartByte < end {
			continue
		}
		out[k] = it
		end = it.EndByte
	}
	return out
}

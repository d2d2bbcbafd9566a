// Package csource finds C and C++ sources on disk and resolves the include
// directives they contain.
package csource

import (
	"bytes"
	"path/filepath"
	"slices"
	"strings"

	"github.com/src-d/enry/v2"
)

// Language identifies the tree-sitter grammar used for a file.
type Language string

// Supported languages.
const (
	LangC   Language = "c"
	LangCPP Language = "cpp"
)

// enryCPP is enry's name for C++.
const enryCPP = "C++"

var extensionLanguages = map[string]Language{
	".c":   LangC,
	".h":   LangC,
	".cpp": LangCPP,
	".cc":  LangCPP,
	".cxx": LangCPP,
	".c++": LangCPP,
	".hpp": LangCPP,
	".hh":  LangCPP,
	".hxx": LangCPP,
	".h++": LangCPP,
}

// Extensions returns the supported file extensions, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(extensionLanguages))
	for ext := range extensionLanguages {
		exts = append(exts, ext)
	}

	slices.Sort(exts)

	return exts
}

// Detect maps a path to its language by extension.
func Detect(path string) (Language, bool) {
	lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(path))]

	return lang, ok
}

// IsSupported reports whether path has a C or C++ extension.
func IsSupported(path string) bool {
	_, ok := Detect(path)

	return ok
}

// DetectContent refines Detect with the file content. Plain .h headers are
// ambiguous; they are parsed as C++ when enry's content heuristics (templates,
// namespaces, access specifiers, std:: names) say so.
func DetectContent(path string, content []byte) Language {
	lang, ok := Detect(path)
	if !ok {
		return ""
	}

	if lang != LangC || !strings.EqualFold(filepath.Ext(path), ".h") || len(content) == 0 {
		return lang
	}

	if byContent, _ := enry.GetLanguageByContent(filepath.Base(path), content); byContent == enryCPP {
		return LangCPP
	}

	return lang
}

// ParseLanguage accepts the names users type for the two languages.
func ParseLanguage(name string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "c":
		return LangC, true
	case "cpp", "c++", "cxx", "cc":
		return LangCPP, true
	default:
		return "", false
	}
}

// binarySniffLength bounds the prefix searched for NUL bytes, the same
// heuristic Git uses.
const binarySniffLength = 8000

// IsBinary reports whether content has a NUL byte in its first 8000 bytes.
// Object files and archives sometimes carry a C extension.
func IsBinary(content []byte) bool {
	sniff := content
	if len(sniff) > binarySniffLength {
		sniff = sniff[:binarySniffLength]
	}

	return bytes.IndexByte(sniff, 0) >= 0
}

package cparse

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/funcscan/pkg/csource"
	"github.com/Sumatoshi-tech/funcscan/pkg/safeconv"
)

// Tree-sitter node types used by the walker. C and C++ share most of them.
const (
	nodeFunctionDefinition = "function_definition"
	nodeDeclaration        = "declaration"
	nodeFieldDeclaration   = "field_declaration"
	nodeFriendDeclaration  = "friend_declaration"
	nodeFunctionDeclarator = "function_declarator"
	nodePointerDeclarator  = "pointer_declarator"
	nodeReferenceDecl      = "reference_declarator"
	nodeParenDeclarator    = "parenthesized_declarator"
	nodeAttributedDecl     = "attributed_declarator"
	nodeNamespaceDef       = "namespace_definition"
	nodeNamespaceAlias     = "namespace_alias_definition"
	nodeClassSpecifier     = "class_specifier"
	nodeStructSpecifier    = "struct_specifier"
	nodeUnionSpecifier     = "union_specifier"
	nodeCallExpression     = "call_expression"
	nodePreprocInclude     = "preproc_include"
	nodeComment            = "comment"

	nodeIdentifier        = "identifier"
	nodeFieldIdentifier   = "field_identifier"
	nodeQualifiedIdent    = "qualified_identifier"
	nodeTemplateFunction  = "template_function"
	nodeTemplateMethod    = "template_method"
	nodeTemplateType      = "template_type"
	nodeDestructorName    = "destructor_name"
	nodeFieldExpression   = "field_expression"
	nodeNestedNamespace   = "nested_namespace_specifier"
	nodeStorageClass      = "storage_class_specifier"
	nodeSystemLibString   = "system_lib_string"
	nodeStringLiteral     = "string_literal"
	nodeParameterList     = "parameter_list"
	nodeTypeQualifier     = "type_qualifier"
	nodeVirtual           = "virtual"
	nodeVirtualSpecifier  = "virtual_function_specifier"
	nodeExplicitSpecifier = "explicit_function_specifier"
)

// Fields.
const (
	fieldDeclarator = "declarator"
	fieldBody       = "body"
	fieldName       = "name"
	fieldScope      = "scope"
	fieldFunction   = "function"
	fieldField      = "field"
	fieldPath       = "path"
	fieldParameters = "parameters"
	fieldType       = "type"
)

// errorSnippetLen bounds the source excerpt quoted in syntax error messages.
const errorSnippetLen = 40

// ignoredSpecifiers do not contribute to the return type.
var ignoredSpecifiers = map[string]bool{
	nodeComment:               true,
	"attribute_specifier":     true,
	"attribute_declaration":   true,
	"ms_declspec_modifier":    true,
	"ms_call_modifier":        true,
	"alignas_qualifier":       true,
	"gnu_asm_expression":      true,
	"template_parameter_list": true,
}

type scopeKind int

const (
	scopeNamespace scopeKind = iota
	scopeClass
	scopeFunction
)

type scope struct {
	kind scopeKind
	name string
}

// walker carries the traversal state for one file.
type walker struct {
	result     *FileResult
	source     []byte
	cpp        bool
	resolver   *csource.Resolver
	scopes     []scope
	namespaces map[string]bool
}

func newWalker(result *FileResult, source []byte, cpp bool, resolver *csource.Resolver) *walker {
	return &walker{
		result:     result,
		source:     source,
		cpp:        cpp,
		resolver:   resolver,
		namespaces: map[string]bool{"std": true},
	}
}

// collectNamespaces records every namespace name in the file so qualified
// definitions like a::f can tell namespaces from classes.
func (w *walker) collectNamespaces(n sitter.Node) {
	if !w.cpp {
		return
	}

	switch n.Type() {
	case nodeNamespaceDef:
		for _, part := range strings.Split(w.text(n.ChildByFieldName(fieldName)), "::") {
			if part = strings.TrimSpace(part); part != "" {
				w.namespaces[part] = true
			}
		}
	case nodeNamespaceAlias:
		w.namespaces[w.text(n.ChildByFieldName(fieldName))] = true
	}

	for idx := range n.NamedChildCount() {
		w.collectNamespaces(n.NamedChild(idx))
	}
}

func (w *walker) walk(n sitter.Node) {
	if n.IsNull() {
		return
	}

	switch n.Type() {
	case nodeFunctionDefinition:
		w.functionDefinition(n)

		return
	case nodeDeclaration, nodeFieldDeclaration:
		w.declaration(n)
	case nodeFriendDeclaration:
		w.friend(n)

		return
	case nodeNamespaceDef:
		w.namespace(n)

		return
	case nodeClassSpecifier, nodeStructSpecifier, nodeUnionSpecifier:
		if w.cpp && !n.ChildByFieldName(fieldBody).IsNull() {
			w.class(n)

			return
		}
	case nodeCallExpression:
		w.call(n)
	case nodePreprocInclude:
		w.include(n)

		return
	}

	w.walkChildren(n)
}

func (w *walker) walkChildren(n sitter.Node) {
	for idx := range n.NamedChildCount() {
		w.walk(n.NamedChild(idx))
	}
}

// diagnose reports syntax errors over the whole tree, anonymous tokens
// included: tree-sitter inserts missing punctuation as anonymous nodes.
// Only the outermost ERROR of a nested run is reported.
func (w *walker) diagnose(n sitter.Node, inError bool) {
	if n.IsNull() || !n.HasError() {
		return
	}

	switch {
	case n.IsMissing():
		w.missing(n)

		return
	case n.IsError() && !inError:
		w.syntaxError(n)

		inError = true
	}

	for idx := range n.ChildCount() {
		w.diagnose(n.Child(idx), inError)
	}
}

func (w *walker) push(kind scopeKind, name string) {
	w.scopes = append(w.scopes, scope{kind: kind, name: name})
}

func (w *walker) pop() {
	w.scopes = w.scopes[:len(w.scopes)-1]
}

func (w *walker) namespace(n sitter.Node) {
	// Anonymous namespaces contribute nothing to qualified names.
	name := w.text(n.ChildByFieldName(fieldName))
	name = strings.Join(strings.Fields(name), "")

	w.push(scopeNamespace, name)
	w.walk(n.ChildByFieldName(fieldBody))
	w.pop()
}

func (w *walker) class(n sitter.Node) {
	w.push(scopeClass, w.scopeName(n.ChildByFieldName(fieldName)))

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if child.Type() == "base_class_clause" {
			continue
		}

		w.walk(child)
	}

	w.pop()
}

// friend walks a friend declaration outside the enclosing class scopes:
// friend functions belong to the surrounding namespace.
func (w *walker) friend(n sitter.Node) {
	saved := w.scopes

	var outer []scope

	for _, s := range saved {
		if s.kind != scopeNamespace {
			break
		}

		outer = append(outer, s)
	}

	w.scopes = outer
	w.walkChildren(n)
	w.scopes = saved
}

func (w *walker) functionDefinition(n sitter.Node) {
	declarator := n.ChildByFieldName(fieldDeclarator)

	fn, ok := w.function(n, declarator, true)
	if ok {
		w.result.Functions = append(w.result.Functions, fn)
		w.push(scopeFunction, fn.Qualified)
	}

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if sameNode(child, declarator) {
			continue
		}

		w.walk(child)
	}

	if ok {
		w.pop()
	}
}

// declaration records every function declarator among the declaration's
// declarators. Initializers and nested type bodies are walked afterwards by
// the caller.
func (w *walker) declaration(n sitter.Node) {
	typeNode := n.ChildByFieldName(fieldType)

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if sameNode(child, typeNode) {
			continue
		}

		if fn, ok := w.function(n, child, false); ok {
			w.result.Functions = append(w.result.Functions, fn)
		}
	}
}

func (w *walker) call(n sitter.Node) {
	callee := n.ChildByFieldName(fieldFunction)

	name := w.calleeName(callee)
	if name == "" {
		return
	}

	start := n.StartPoint()

	w.result.Calls = append(w.result.Calls, Call{
		Callee:   name,
		Spelling: collapse(w.text(callee)),
		File:     w.result.Path,
		Line:     safeconv.OneBased(start.Row),
		Column:   safeconv.OneBased(start.Column),
		Caller:   w.enclosingFunction(),
		Member:   callee.Type() == nodeFieldExpression,
	})
}

// calleeName returns the unqualified name a call expression invokes, or ""
// when the callee is not a name (function pointers, call chains, lambdas).
func (w *walker) calleeName(n sitter.Node) string {
	if n.IsNull() {
		return ""
	}

	switch n.Type() {
	case nodeIdentifier, nodeFieldIdentifier, nodeDestructorName:
		return w.text(n)
	case nodeFieldExpression:
		return w.calleeName(n.ChildByFieldName(fieldField))
	case nodeQualifiedIdent, nodeTemplateFunction, nodeTemplateMethod:
		return w.calleeName(n.ChildByFieldName(fieldName))
	default:
		return ""
	}
}

func (w *walker) include(n sitter.Node) {
	path := n.ChildByFieldName(fieldPath)
	if path.IsNull() {
		return
	}

	raw := w.text(path)
	inc := Include{Line: safeconv.OneBased(n.StartPoint().Row)}

	switch path.Type() {
	case nodeSystemLibString:
		inc.System = true
		inc.Spelling = strings.TrimSuffix(strings.TrimPrefix(raw, "<"), ">")
	case nodeStringLiteral:
		inc.Spelling = strings.Trim(raw, `"`)
	default:
		// Macro-named includes cannot be resolved without a preprocessor.
		inc.Spelling = raw
		w.result.Includes = append(w.result.Includes, inc)

		return
	}

	if resolved, ok := w.resolver.Resolve(w.result.Path, inc.Spelling, inc.System); ok {
		inc.Resolved = resolved
	} else if !inc.System {
		start := path.StartPoint()
		w.result.Diagnostics = append(w.result.Diagnostics, Diagnostic{
			File:     w.result.Path,
			Line:     safeconv.OneBased(start.Row),
			Column:   safeconv.OneBased(start.Column),
			Severity: SeverityWarning,
			Message:  "'" + inc.Spelling + "' file not found",
		})
	}

	w.result.Includes = append(w.result.Includes, inc)
}

func (w *walker) syntaxError(n sitter.Node) {
	start := n.StartPoint()

	snippet := collapse(w.text(n))
	if len(snippet) > errorSnippetLen {
		snippet = snippet[:errorSnippetLen] + "..."
	}

	w.result.Diagnostics = append(w.result.Diagnostics, Diagnostic{
		File:     w.result.Path,
		Line:     safeconv.OneBased(start.Row),
		Column:   safeconv.OneBased(start.Column),
		Severity: SeverityError,
		Message:  "syntax error near '" + snippet + "'",
	})
}

func (w *walker) missing(n sitter.Node) {
	start := n.StartPoint()

	what := n.Type()
	if !n.IsNamed() {
		what = "'" + what + "'"
	}

	w.result.Diagnostics = append(w.result.Diagnostics, Diagnostic{
		File:     w.result.Path,
		Line:     safeconv.OneBased(start.Row),
		Column:   safeconv.OneBased(start.Column),
		Severity: SeverityError,
		Message:  "missing " + what,
	})
}

func (w *walker) enclosingFunction() string {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if w.scopes[i].kind == scopeFunction {
			return w.scopes[i].name
		}
	}

	return ""
}

// inClass reports whether the innermost non-function scope is a class.
func (w *walker) inClass() bool {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		switch w.scopes[i].kind {
		case scopeClass:
			return true
		case scopeNamespace:
			return false
		case scopeFunction:
		}
	}

	return false
}

// prefix joins the enclosing namespace and class names.
func (w *walker) prefix() []string {
	var parts []string

	for _, s := range w.scopes {
		if s.kind == scopeFunction || s.name == "" {
			continue
		}

		parts = append(parts, s.name)
	}

	return parts
}

func (w *walker) text(n sitter.Node) string {
	if n.IsNull() {
		return ""
	}

	start, end := n.StartByte(), n.EndByte()
	if end > uint(len(w.source)) || start > end {
		return ""
	}

	return string(w.source[start:end])
}

func sameNode(a, b sitter.Node) bool {
	if a.IsNull() || b.IsNull() {
		return false
	}

	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// collapse squeezes runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

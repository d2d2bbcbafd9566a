package cparse

import (
	"slices"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/funcscan/pkg/safeconv"
)

// function builds a Function from a declaration-like node and one of its
// declarators. It returns false when the declarator does not declare a
// function (variables, function pointers).
func (w *walker) function(decl, declarator sitter.Node, definition bool) (Function, bool) {
	fnDecl, indirection, ok := w.functionDeclarator(declarator)
	if !ok {
		return Function{}, false
	}

	nameNode := fnDecl.ChildByFieldName(fieldDeclarator)

	name, qualifier, destructor := w.declaratorName(nameNode)
	if name == "" {
		return Function{}, false
	}

	storage, returnType := w.specifiers(decl, declarator)

	kind := KindFunction
	if w.cpp && (w.inClass() || destructor || w.scopeIsClass(qualifier)) {
		kind = KindMethod
	}

	qualified := slices.Concat(w.prefix(), qualifier, []string{name})

	signature := collapse(w.text(declarator))
	if returnType != "" {
		signature = returnType + " " + signature
	}

	if returnType != "" && indirection != "" {
		returnType += " " + indirection
	}

	start := nameNode.StartPoint()
	end := decl.EndPoint()

	return Function{
		Name:       name,
		Qualified:  strings.Join(qualified, "::"),
		Kind:       kind,
		Signature:  signature,
		ReturnType: returnType,
		Params:     w.params(fnDecl.ChildByFieldName(fieldParameters)),
		Storage:    storage,
		Definition: definition,
		File:       w.result.Path,
		Line:       safeconv.OneBased(start.Row),
		Column:     safeconv.OneBased(start.Column),
		EndLine:    safeconv.OneBased(end.Row),
		EndColumn:  safeconv.OneBased(end.Column),
	}, true
}

// functionDeclarator unwraps pointer, reference and parenthesized
// declarators down to the function_declarator that names a function.
// The returned indirection is the "*" / "&" text peeled off on the way,
// which belongs to the return type.
func (w *walker) functionDeclarator(n sitter.Node) (sitter.Node, string, bool) {
	var indirection strings.Builder

	for !n.IsNull() {
		switch n.Type() {
		case nodeFunctionDeclarator:
			inner := n.ChildByFieldName(fieldDeclarator)
			if inner.Type() != nodeParenDeclarator {
				return n, indirection.String(), true
			}

			// int (*fp)(int) declares a pointer; int (*signal(int))(int)
			// declares signal. Only the latter has a function inside.
			nested, _, ok := w.functionDeclarator(lastNamedChild(inner))
			if !ok {
				return sitter.Node{}, "", false
			}

			return nested, "", true
		case nodePointerDeclarator:
			indirection.WriteString("*")

			n = n.ChildByFieldName(fieldDeclarator)
		case nodeReferenceDecl:
			if strings.HasPrefix(w.text(n), "&&") {
				indirection.WriteString("&&")
			} else {
				indirection.WriteString("&")
			}

			n = lastNamedChild(n)
		case nodeAttributedDecl:
			n = n.ChildByFieldName(fieldDeclarator)
		case nodeParenDeclarator:
			n = lastNamedChild(n)
		default:
			return sitter.Node{}, "", false
		}
	}

	return sitter.Node{}, "", false
}

// declaratorName splits the name a function declarator declares into the
// unqualified name and the explicit qualifier written before it (B in
// void B::f()).
func (w *walker) declaratorName(n sitter.Node) (string, []string, bool) {
	switch n.Type() {
	case nodeIdentifier, nodeFieldIdentifier:
		return w.text(n), nil, false
	case nodeDestructorName:
		return collapse(w.text(n)), nil, true
	case nodeTemplateFunction:
		return w.text(n.ChildByFieldName(fieldName)), nil, false
	case nodeQualifiedIdent:
		scopeName := w.scopeName(n.ChildByFieldName(fieldScope))

		name, rest, destructor := w.declaratorName(n.ChildByFieldName(fieldName))
		if name == "" {
			return "", nil, false
		}

		if scopeName == "" {
			return name, rest, destructor
		}

		return name, append([]string{scopeName}, rest...), destructor
	case "operator_name", "operator_cast":
		return collapse(w.text(n)), nil, false
	default:
		return "", nil, false
	}
}

// scopeName returns the name a scope or class name node contributes to a
// qualified name, without template arguments.
func (w *walker) scopeName(n sitter.Node) string {
	if n.IsNull() {
		return ""
	}

	switch n.Type() {
	case nodeTemplateType:
		return w.text(n.ChildByFieldName(fieldName))
	case nodeQualifiedIdent:
		outer := w.scopeName(n.ChildByFieldName(fieldScope))
		inner := w.scopeName(n.ChildByFieldName(fieldName))

		if outer == "" {
			return inner
		}

		return outer + "::" + inner
	case nodeNestedNamespace:
		return strings.Join(strings.Fields(w.text(n)), "")
	default:
		return collapse(w.text(n))
	}
}

// scopeIsClass reports whether an explicit qualifier names a class. Scopes
// declared as namespaces in this file (or std) are namespaces; anything else
// is taken to be a class declared elsewhere.
func (w *walker) scopeIsClass(qualifier []string) bool {
	for _, part := range qualifier {
		for piece := range strings.SplitSeq(part, "::") {
			if !w.namespaces[piece] {
				return true
			}
		}
	}

	return false
}

// specifiers collects storage keywords and the return type text written
// before declarator.
func (w *walker) specifiers(decl, declarator sitter.Node) ([]string, string) {
	var (
		storage []string
		parts   []string
	)

	limit := declarator.StartByte()

	for idx := range decl.NamedChildCount() {
		child := decl.NamedChild(idx)
		if child.StartByte() >= limit {
			break
		}

		switch child.Type() {
		case nodeStorageClass, nodeVirtual, nodeVirtualSpecifier, nodeExplicitSpecifier:
			storage = append(storage, collapse(w.text(child)))
		default:
			if ignoredSpecifiers[child.Type()] {
				continue
			}

			// Earlier declarators of a multi-declarator declaration.
			if _, _, isFn := w.functionDeclarator(child); isFn || child.Type() == "init_declarator" {
				continue
			}

			if child.Type() == nodeTypeQualifier || isTypeNode(child.Type()) {
				parts = append(parts, collapse(w.text(child)))
			}
		}
	}

	return storage, strings.Join(parts, " ")
}

func isTypeNode(typ string) bool {
	switch typ {
	case "primitive_type", "sized_type_specifier", "type_identifier", "template_type",
		nodeQualifiedIdent, nodeStructSpecifier, nodeUnionSpecifier, "enum_specifier",
		nodeClassSpecifier, "placeholder_type_specifier", "auto", "decltype",
		"macro_type_specifier", "dependent_type":
		return true
	default:
		return false
	}
}

// params lists the parameters as written, "..." for C varargs.
// A lone void parameter list yields no parameters.
func (w *walker) params(list sitter.Node) []string {
	if list.IsNull() || list.Type() != nodeParameterList {
		return nil
	}

	var out []string

	for idx := range list.NamedChildCount() {
		child := list.NamedChild(idx)
		if child.Type() == nodeComment {
			continue
		}

		out = append(out, collapse(w.text(child)))
	}

	if len(out) == 1 && out[0] == "void" {
		return nil
	}

	if strings.HasSuffix(strings.TrimSuffix(collapse(w.text(list)), ")"), "...") &&
		(len(out) == 0 || !strings.HasSuffix(out[len(out)-1], "...")) {
		out = append(out, "...")
	}

	return out
}

func lastNamedChild(n sitter.Node) sitter.Node {
	count := n.NamedChildCount()
	if count == 0 {
		return sitter.Node{}
	}

	return n.NamedChild(count - 1)
}

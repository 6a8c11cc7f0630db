package chunk

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// treeSitterLanguages maps language names to tree-sitter grammars.
var treeSitterLanguages = map[string]*sitter.Language{
	"go":         golang.GetLanguage(),
	"python":     python.GetLanguage(),
	"javascript": javascript.GetLanguage(),
	"typescript": typescript.GetLanguage(),
	"tsx":        tsx.GetLanguage(),
}

// TreeSitterStrategy extracts top-level symbols from a parsed syntax tree.
// It reports NotApplicable for unsupported languages, on parse errors, and
// when the tree yields no symbols, handing control to the regex tier.
type TreeSitterStrategy struct{}

// NewTreeSitterStrategy returns the structural extractor tier.
func NewTreeSitterStrategy() *TreeSitterStrategy {
	return &TreeSitterStrategy{}
}

// Name identifies the strategy in logs.
func (s *TreeSitterStrategy) Name() string { return "tree-sitter" }

// Extract parses the source and collects top-level definitions.
// A fresh parser per call keeps the strategy safe for concurrent use.
func (s *TreeSitterStrategy) Extract(source []byte, lines []string, language string) ([]Symbol, bool) {
	tsLang, ok := treeSitterLanguages[language]
	if !ok {
		return nil, false
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tsLang)

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil || tree == nil {
		return nil, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, false
	}

	var symbols []Symbol
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if sym, ok := s.symbolFromNode(child, source, language); ok {
			symbols = append(symbols, sym)
		}
	}

	if len(symbols) == 0 {
		return nil, false
	}
	return symbols, true
}

// symbolFromNode classifies a top-level node as a function or class symbol.
func (s *TreeSitterStrategy) symbolFromNode(node *sitter.Node, source []byte, language string) (Symbol, bool) {
	span := func(name string, typ SymbolType) (Symbol, bool) {
		if name == "" {
			return Symbol{}, false
		}
		return Symbol{
			Name:  name,
			Type:  typ,
			Start: int(node.StartPoint().Row),
			End:   int(node.EndPoint().Row) + 1,
		}, true
	}

	switch node.Type() {
	case "function_declaration", "function_definition", "generator_function_declaration":
		return span(fieldName(node, source), SymbolTypeFunction)

	case "method_declaration":
		return span(fieldName(node, source), SymbolTypeFunction)

	case "class_declaration", "class_definition":
		return span(fieldName(node, source), SymbolTypeClass)

	case "type_declaration":
		// Go: the name lives on the inner type_spec.
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if spec := node.NamedChild(i); spec.Type() == "type_spec" {
				return span(fieldName(spec, source), SymbolTypeClass)
			}
		}
		return Symbol{}, false

	case "interface_declaration", "type_alias_declaration", "enum_declaration":
		return span(fieldName(node, source), SymbolTypeClass)

	case "decorated_definition":
		// Python decorators: the span includes the decorators, the name
		// comes from the wrapped definition.
		def := node.ChildByFieldName("definition")
		if def == nil {
			return Symbol{}, false
		}
		typ := SymbolTypeFunction
		if def.Type() == "class_definition" {
			typ = SymbolTypeClass
		}
		return span(fieldName(def, source), typ)

	case "export_statement":
		// JS/TS: unwrap the exported declaration, keep the export span.
		decl := node.ChildByFieldName("declaration")
		if decl == nil {
			return Symbol{}, false
		}
		inner, ok := s.symbolFromNode(decl, source, language)
		if !ok {
			return Symbol{}, false
		}
		inner.Start = int(node.StartPoint().Row)
		inner.End = int(node.EndPoint().Row) + 1
		return inner, true

	case "lexical_declaration", "variable_declaration":
		// JS/TS arrow functions and function expressions bound to a name.
		for i := 0; i < int(node.NamedChildCount()); i++ {
			declarator := node.NamedChild(i)
			if declarator.Type() != "variable_declarator" {
				continue
			}
			value := declarator.ChildByFieldName("value")
			if value == nil {
				continue
			}
			switch value.Type() {
			case "arrow_function", "function", "function_expression":
				return span(fieldName(declarator, source), SymbolTypeFunction)
			}
		}
		return Symbol{}, false
	}

	return Symbol{}, false
}

// fieldName returns the text of a node's "name" field, or "".
func fieldName(node *sitter.Node, source []byte) string {
	name := node.ChildByFieldName("name")
	if name == nil {
		return ""
	}
	return name.Content(source)
}

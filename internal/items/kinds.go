package items

import (
	"fmt"
	"strings"
)

// ItemKinds returns the node kinds treated as top-level items for a language.
func ItemKinds(lang Language) []string {
	switch lang {
	case LangRust:
		return []string{
			"const_item",
			"macro_invocation",
			"macro_definition",
			"empty_statement",
			"attribute_item",
			"inner_attribute_item",
			"mod_item",
			"foreign_mod_item",
			"struct_item",
			"union_item",
			"enum_item",
			"type_item",
			"function_item",
			"function_signature_item",
			"impl_item",
			"trait_item",
			"associated_type",
			"let_declaration",
			"use_declaration",
			"extern_crate_declaration",
			"static_item",
		}
	case LangGo:
		return []string{
			"package_clause",
			"import_declaration",
			"const_declaration",
			"var_declaration",
			"type_declaration",
			"function_declaration",
			"method_declaration",
		}
	case LangJavaScript:
		return []string{
			"import_statement",
			"export_statement",
			"function_declaration",
			"generator_function_declaration",
			"class_declaration",
			"lexical_declaration",
			"variable_declaration",
			"expression_statement",
		}
	case LangTypeScript, LangTSX:
		return []string{
			"import_statement",
			"export_statement",
			"function_declaration",
			"generator_function_declaration",
			"class_declaration",
			"abstract_class_declaration",
			"interface_declaration",
			"type_alias_declaration",
			"enum_declaration",
			"lexical_declaration",
			"variable_declaration",
			"expression_statement",
		}
	case LangPython:
		return []string{
			"import_statement",
			"import_from_statement",
			"function_definition",
			"class_definition",
			"decorated_definition",
			"expression_statement",
		}
	case LangJava:
		return []string{
			"package_declaration",
			"import_declaration",
			"class_declaration",
			"interface_declaration",
			"enum_declaration",
			"annotation_type_declaration",
		}
	case LangKotlin:
		return []string{
			"package_header",
			"import_list",
			"class_declaration",
			"object_declaration",
			"function_declaration",
			"property_declaration",
			"type_alias",
		}
	default:
		return nil
	}
}

// QueryFor builds the structural query capturing every item kind of a language as @item.
func QueryFor(lang Language) (string, error) {
	kinds := ItemKinds(lang)
	if len(kinds) == 0 {
		return "", fmt.Errorf("unsupported language: %s", lang)
	}

	var b strings.Builder
	b.WriteString("([\n")
	for _, k := range kinds {
		fmt.Fprintf(&b, "  (%s) @%s\n", k, captureName)
	}
	b.WriteString("])")
	return b.String(), nil
}

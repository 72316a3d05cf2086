package maidfile

import (
	"encoding/json"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// decodeHCL converts an HCL document into the same generic shape the other
// formats produce. Blocks become nested tables keyed by their type and then by
// each label, so `tasks "build" { ... }` and `tasks { build { ... } }` agree.
func decodeHCL(contents []byte, sourceName string) (map[string]any, error) {
	parser := hclparse.NewParser()
	file, diagnostics := parser.ParseHCL(contents, sourceName)
	if diagnostics.HasErrors() {
		return nil, diagnostics
	}

	body, isSyntaxBody := file.Body.(*hclsyntax.Body)
	if !isSyntaxBody {
		return nil, hcl.Diagnostics{{Severity: hcl.DiagError, Summary: "unexpected HCL body type"}}
	}
	return convertHCLBody(body)
}

func convertHCLBody(body *hclsyntax.Body) (map[string]any, error) {
	result := map[string]any{}

	for name, attribute := range body.Attributes {
		value, diagnostics := attribute.Expr.Value(nil)
		if diagnostics.HasErrors() {
			return nil, diagnostics
		}
		encoded, encodeError := ctyjson.SimpleJSONValue{Value: value}.MarshalJSON()
		if encodeError != nil {
			return nil, encodeError
		}
		var decoded any
		if decodeError := json.Unmarshal(encoded, &decoded); decodeError != nil {
			return nil, decodeError
		}
		result[name] = decoded
	}

	for _, block := range body.Blocks {
		blockValue, blockError := convertHCLBody(block.Body)
		if blockError != nil {
			return nil, blockError
		}

		keyPath := append([]string{block.Type}, block.Labels...)
		container := result
		for _, key := range keyPath[:len(keyPath)-1] {
			nested, exists := container[key].(map[string]any)
			if !exists {
				nested = map[string]any{}
				container[key] = nested
			}
			container = nested
		}

		leafKey := keyPath[len(keyPath)-1]
		if existing, exists := container[leafKey].(map[string]any); exists {
			container[leafKey] = mergeDocuments(existing, blockValue)
			continue
		}
		container[leafKey] = blockValue
	}

	return result, nil
}

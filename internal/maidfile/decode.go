package maidfile

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies a descriptor serialization.
type Format string

// Supported descriptor formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatHCL  Format = "hcl"
)

const (
	unsupportedFormatTemplateConstant     = "unsupported maidfile format %q"
	scriptUnexpectedValueTemplateConstant = "Unable to parse maidfile. Contains unexpected %s values."
	scriptArrayTypeNameConstant           = "array"
	scriptMapTypeNameConstant             = "table"
	yamlExtensionAliasConstant            = "yml"
)

// FormatForExtension maps a file extension to a descriptor format. Files
// without a recognized extension are read as TOML.
func FormatForExtension(extension string) Format {
	switch strings.ToLower(strings.TrimPrefix(extension, ".")) {
	case string(FormatYAML), yamlExtensionAliasConstant:
		return FormatYAML
	case string(FormatJSON):
		return FormatJSON
	case string(FormatHCL):
		return FormatHCL
	default:
		return FormatTOML
	}
}

// ScriptValueError reports a script entry that is neither a string nor a list of strings.
type ScriptValueError struct {
	TypeName string
}

// Error describes the unexpected script value.
func (valueError ScriptValueError) Error() string {
	return fmt.Sprintf(scriptUnexpectedValueTemplateConstant, valueError.TypeName)
}

func decodeDocument(contents []byte, format Format, sourceName string) (map[string]any, error) {
	switch format {
	case FormatTOML:
		document := map[string]any{}
		if decodeError := toml.Unmarshal(contents, &document); decodeError != nil {
			return nil, decodeError
		}
		return document, nil
	case FormatYAML:
		document := map[string]any{}
		if decodeError := yaml.Unmarshal(contents, &document); decodeError != nil {
			return nil, decodeError
		}
		return normalizeYAML(document).(map[string]any), nil
	case FormatJSON:
		document := map[string]any{}
		if decodeError := json.Unmarshal(contents, &document); decodeError != nil {
			return nil, decodeError
		}
		return document, nil
	case FormatHCL:
		return decodeHCL(contents, sourceName)
	default:
		return nil, fmt.Errorf(unsupportedFormatTemplateConstant, format)
	}
}

// normalizeYAML converts any map[any]any produced by non-string keys into
// string keyed maps so documents merge uniformly across formats.
func normalizeYAML(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		for key, nested := range typed {
			typed[key] = normalizeYAML(nested)
		}
		return typed
	case map[any]any:
		converted := make(map[string]any, len(typed))
		for key, nested := range typed {
			converted[fmt.Sprint(key)] = normalizeYAML(nested)
		}
		return converted
	case []any:
		for index, nested := range typed {
			typed[index] = normalizeYAML(nested)
		}
		return typed
	default:
		return value
	}
}

func decodeMaidfile(document map[string]any) (Maidfile, error) {
	var maidfile Maidfile
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       scriptDecodeHook,
		Result:           &maidfile,
		WeaklyTypedInput: true,
	})
	if decoderError != nil {
		return Maidfile{}, decoderError
	}
	if decodeError := decoder.Decode(document); decodeError != nil {
		return Maidfile{}, decodeError
	}
	return maidfile, nil
}

func scriptDecodeHook(sourceType reflect.Type, targetType reflect.Type, data any) (any, error) {
	if targetType != reflect.TypeOf(Script{}) {
		return data, nil
	}

	switch typed := data.(type) {
	case string:
		return Script{typed}, nil
	case []string:
		return Script(typed), nil
	case []any:
		lines := make(Script, 0, len(typed))
		for _, entry := range typed {
			line, isString := entry.(string)
			if !isString {
				return nil, ScriptValueError{TypeName: fmt.Sprintf("%T", entry)}
			}
			lines = append(lines, line)
		}
		return lines, nil
	case map[string]any:
		return nil, ScriptValueError{TypeName: scriptMapTypeNameConstant}
	case nil:
		return Script{}, nil
	default:
		if sourceType.Kind() == reflect.Slice {
			return nil, ScriptValueError{TypeName: scriptArrayTypeNameConstant}
		}
		return nil, ScriptValueError{TypeName: sourceType.String()}
	}
}

// mergeDocuments applies overlay onto base recursively. Nested tables are
// merged key by key; every other value in overlay replaces the base value.
func mergeDocuments(base map[string]any, overlay map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(overlay))
	for key, value := range base {
		merged[key] = value
	}
	for key, overlayValue := range overlay {
		baseTable, baseIsTable := merged[key].(map[string]any)
		overlayTable, overlayIsTable := overlayValue.(map[string]any)
		if baseIsTable && overlayIsTable {
			merged[key] = mergeDocuments(baseTable, overlayTable)
			continue
		}
		merged[key] = overlayValue
	}
	return merged
}

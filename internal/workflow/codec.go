package workflow

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// ParseJSON decodes and validates a workflow document. Durations inside
// the document accept integer milliseconds, Go duration strings or
// {secs, nanos} objects.
func ParseJSON(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, types.WrapError(types.SERIALIZATION_FAILED, "decoding workflow JSON", err)
	}
	if err := NewValidator().Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// ParseYAML decodes and validates a YAML workflow document.
func ParseYAML(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, types.WrapError(types.SERIALIZATION_FAILED, "decoding workflow YAML", err)
	}
	if err := NewValidator().Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// EncodeJSON serializes a definition with stable indentation.
func EncodeJSON(def *Definition) ([]byte, error) {
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return nil, types.WrapError(types.SERIALIZATION_FAILED, "encoding workflow JSON", err)
	}
	return data, nil
}

// EncodeYAML serializes a definition to YAML.
func EncodeYAML(def *Definition) ([]byte, error) {
	data, err := yaml.Marshal(def)
	if err != nil {
		return nil, types.WrapError(types.SERIALIZATION_FAILED, "encoding workflow YAML", err)
	}
	return data, nil
}

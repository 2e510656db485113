package export

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// NewYAMLSerializer creates a new serializer producing yaml
func NewYAMLSerializer() ISerializer {
	return &yamlSerializerImpl{}
}

// yamlSerializerImpl implements the ISerializer interface using yaml encoding
type yamlSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see export.ISerializer)
// --------------------------------------------------------------------------

func (y yamlSerializerImpl) Serialize(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (y yamlSerializerImpl) Deserialize(b []byte, v interface{}) error {
	return yaml.Unmarshal(b, v)
}

func (y yamlSerializerImpl) Format() string {
	return "yaml"
}

package export

import (
	"fmt"
	"strings"
)

// ISerializer renders decoded records for humans and tools.
type ISerializer interface {
	// Serialize encodes v. The output always ends with a newline.
	Serialize(v interface{}) ([]byte, error)
	// Deserialize decodes b into the value pointed to by v.
	Deserialize(b []byte, v interface{}) error
	// Format returns the name of the format.
	Format() string
}

// Formats lists the names accepted by New.
var Formats = []string{"json", "yaml"}

// New returns the serializer for format.
func New(format string) (ISerializer, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONSerializer(), nil
	case "yaml", "yml":
		return NewYAMLSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown format %q, must be one of %s", format, strings.Join(Formats, ", "))
	}
}

package codec

import (
	"fmt"
	"strings"
)

// Dataset is a list of serialised records
type Dataset = []map[string]interface{}

// ICodec is the interface for all dataset codecs
type ICodec interface {
	// Name returns the name of the codec (json, gob, yaml)
	Name() string
	// Encode serializes a dataset
	Encode(ds Dataset) ([]byte, error)
	// Decode deserializes a dataset
	Decode(b []byte) (Dataset, error)
}

// ByName returns the codec with the given name
func ByName(name string) (ICodec, error) {
	switch strings.ToLower(name) {
	case "json":
		return NewJSONCodec(), nil
	case "gob":
		return NewGOBCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q. must be one of json, gob, yaml", name)
	}
}

// ByExtension returns the codec matching a file name (json if the extension is unknown)
func ByExtension(path string) ICodec {
	switch {
	case strings.HasSuffix(path, ".gob"):
		return NewGOBCodec()
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return NewYAMLCodec()
	default:
		return NewJSONCodec()
	}
}

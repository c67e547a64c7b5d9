package codec

import "gopkg.in/yaml.v3"

// NewYAMLCodec creates a new codec using yaml encoding
func NewYAMLCodec() ICodec {
	return &yamlCodecImpl{}
}

// yamlCodecImpl implements the ICodec interface using yaml encoding
type yamlCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (y yamlCodecImpl) Name() string { return "yaml" }

func (y yamlCodecImpl) Encode(ds Dataset) ([]byte, error) {
	return yaml.Marshal(ds)
}

func (y yamlCodecImpl) Decode(b []byte) (Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(b, &ds); err != nil {
		return nil, err
	}
	return ds, nil
}

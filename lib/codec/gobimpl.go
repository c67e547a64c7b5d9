package codec

import (
	"bytes"
	"encoding/gob"
	"time"
)

func init() {
	// concrete types stored in interface{} values of a dataset
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
	gob.Register([]map[string]interface{}{})
	gob.Register(time.Time{})
}

// NewGOBCodec creates a new codec using Go's binary gob format
func NewGOBCodec() ICodec {
	return &gobCodecImpl{}
}

// gobCodecImpl implements the ICodec interface using gob encoding
type gobCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (g gobCodecImpl) Name() string { return "gob" }

func (g gobCodecImpl) Encode(ds Dataset) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(ds); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobCodecImpl) Decode(b []byte) (Dataset, error) {
	var ds Dataset
	dec := gob.NewDecoder(bytes.NewBuffer(b))
	if err := dec.Decode(&ds); err != nil {
		return nil, err
	}
	return ds, nil
}

package document

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Codec converts models to and from their stored document form.
type Codec interface {
	Encode(v interface{}) (bson.M, error)
	Decode(doc bson.M, out interface{}) error
}

// BSONCodec maps models through their bson struct tags.
type BSONCodec struct{}

// Encode marshals v and reads it back as a document.
func (BSONCodec) Encode(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	out := bson.M{}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return out, nil
}

// Decode fills out from doc.
func (BSONCodec) Decode(doc bson.M, out interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode into %T: %w", out, err)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode into %T: %w", out, err)
	}
	return nil
}

// AsM returns v as a document when it is one, whatever container the driver used.
func AsM(v interface{}) (bson.M, bool) {
	switch t := v.(type) {
	case bson.M:
		return t, true
	case map[string]interface{}:
		return bson.M(t), true
	case bson.D:
		out := make(bson.M, len(t))
		for _, e := range t {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

// AsSlice returns v as a list when it is one.
func AsSlice(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case bson.A:
		return []interface{}(t), true
	case []interface{}:
		return t, true
	case []bson.M:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	}
	return nil, false
}

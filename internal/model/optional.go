package model

import (
	"bytes"
	"encoding/json"
)

// Optional is a JSON field that records whether it was present and whether
// it was an explicit null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value *T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		o.Value = nil
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

package encoding

import (
	"encoding/json"

	"github.com/tryfix/errors"
)

// JsonEncoder encodes values of T as JSON and decodes them back into T.
type JsonEncoder[T any] struct{}

func NewJsonEncoder[T any]() JsonEncoder[T] {
	return JsonEncoder[T]{}
}

func (JsonEncoder[T]) Encode(v interface{}) ([]byte, error) {
	byt, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithPrevious(err, `json encode failed`)
	}
	return byt, nil
}

func (JsonEncoder[T]) Decode(data []byte) (interface{}, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.WithPrevious(err, `cannot decode data`)
	}
	return v, nil
}

package encoding

import (
	"bytes"
	"reflect"

	"github.com/tryfix/errors"
)

type StringEncoder struct{}

func (s StringEncoder) Encode(v interface{}) ([]byte, error) {
	str, ok := v.(string)
	if !ok {
		return nil, errors.Errorf(`invalid type [%+v] expected string`, reflect.TypeOf(v))
	}

	// the zero byte separates a key from its sequence
	if bytes.IndexByte([]byte(str), sequenceSeparator) >= 0 {
		return nil, errors.Errorf(`string [%q] contains a zero byte`, str)
	}

	return []byte(str), nil
}

func (s StringEncoder) Decode(data []byte) (interface{}, error) {
	return string(data), nil
}

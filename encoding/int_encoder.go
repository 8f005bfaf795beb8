package encoding

import (
	"encoding/binary"
	"reflect"

	"github.com/tryfix/errors"
)

// IntEncoder writes ints as 8 byte big endian with the sign bit flipped, which
// sorts negative numbers before positive ones.
type IntEncoder struct{}

func (IntEncoder) Encode(v interface{}) ([]byte, error) {
	i, ok := v.(int)
	if !ok {
		return nil, errors.Errorf(`invalid type [%v] expected int`, reflect.TypeOf(v))
	}

	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(i)^(1<<63))
	return out, nil
}

func (IntEncoder) Decode(data []byte) (interface{}, error) {
	if len(data) != 8 {
		return nil, errors.Errorf(`cannot decode data, expected 8 bytes got %d`, len(data))
	}

	return int(binary.BigEndian.Uint64(data) ^ (1 << 63)), nil
}

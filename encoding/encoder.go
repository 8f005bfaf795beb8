package encoding

import (
	"encoding/binary"

	"github.com/tryfix/errors"
)

// Encoder converts keys and values to bytes. Key encoders keep the natural
// order of their type under a byte wise comparison.
type Encoder interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte) (interface{}, error)
}

const sequenceSeparator byte = 0x00

// SequencedKey appends a big endian sequence to an encoded key so that equal keys
// stay unique and keep their insertion order in an ordered store.
func SequencedKey(key []byte, seq uint64) []byte {
	out := make([]byte, len(key)+9)
	copy(out, key)
	out[len(key)] = sequenceSeparator
	binary.BigEndian.PutUint64(out[len(key)+1:], seq)
	return out
}

func SplitSequencedKey(data []byte) ([]byte, uint64, error) {
	if len(data) < 9 || data[len(data)-9] != sequenceSeparator {
		return nil, 0, errors.Errorf(`invalid sequenced key [%x]`, data)
	}

	return data[:len(data)-9], binary.BigEndian.Uint64(data[len(data)-8:]), nil
}

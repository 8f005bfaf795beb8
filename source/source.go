// Package source supplies the key sorted row lists a join consumes.
package source

import (
	"cmp"
	"context"
	"fmt"

	"github.com/tryfix/bucketjoin/backend"
	"github.com/tryfix/bucketjoin/encoding"
	"github.com/tryfix/bucketjoin/join"
	"github.com/tryfix/errors"
)

// Source returns its rows sorted ascending by key.
type Source[K cmp.Ordered, P any] interface {
	Rows(ctx context.Context) ([]join.Row[K, P], error)
}

type Func[K cmp.Ordered, P any] func(ctx context.Context) ([]join.Row[K, P], error)

func (fn Func[K, P]) Rows(ctx context.Context) ([]join.Row[K, P], error) {
	return fn(ctx)
}

// Slice serves rows held in memory.
type Slice[K cmp.Ordered, P any] struct {
	rows []join.Row[K, P]
}

// NewSlice copies rows and, when sort is set, stable sorts the copy by key.
func NewSlice[K cmp.Ordered, P any](rows []join.Row[K, P], sort bool) *Slice[K, P] {
	s := &Slice[K, P]{rows: append([]join.Row[K, P](nil), rows...)}
	if sort {
		join.SortRows(s.rows)
	}
	return s
}

func (s *Slice[K, P]) Rows(ctx context.Context) ([]join.Row[K, P], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !join.IsSorted(s.rows) {
		return nil, errors.New(`slice source rows are not sorted by key`)
	}

	return s.rows, nil
}

// Backend reads rows back out of an ordered backend written with sequenced keys.
// The backend order is the row order, so no sort is needed.
type Backend[K cmp.Ordered, P any] struct {
	backend backend.Backend
	keys    encoding.Encoder
	values  encoding.Encoder
}

func NewBackend[K cmp.Ordered, P any](b backend.Backend, keys, values encoding.Encoder) *Backend[K, P] {
	return &Backend[K, P]{backend: b, keys: keys, values: values}
}

func (b *Backend[K, P]) Rows(ctx context.Context) ([]join.Row[K, P], error) {
	i := b.backend.Iterator()
	defer i.Close()

	var rows []join.Row[K, P]
	for i.SeekToFirst(); i.Valid(); i.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := b.decode(i.Key(), i.Value())
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	if err := i.Error(); err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot iterate backend [%s]`, b.backend.Name()))
	}

	return rows, nil
}

func (b *Backend[K, P]) decode(rawKey, rawValue []byte) (join.Row[K, P], error) {
	var row join.Row[K, P]

	keyBytes, _, err := encoding.SplitSequencedKey(rawKey)
	if err != nil {
		return row, err
	}

	k, err := b.keys.Decode(keyBytes)
	if err != nil {
		return row, errors.WithPrevious(err, `key decode failed`)
	}

	v, err := b.values.Decode(rawValue)
	if err != nil {
		return row, errors.WithPrevious(err, `value decode failed`)
	}

	key, ok := k.(K)
	if !ok {
		return row, errors.Errorf(`key decoder returned [%T]`, k)
	}

	payload, ok := v.(P)
	if !ok {
		return row, errors.Errorf(`value decoder returned [%T]`, v)
	}

	row.Key = key
	row.Payload = payload
	return row, nil
}

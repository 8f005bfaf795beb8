// Package sink hands joined records to their destination.
package sink

import (
	"cmp"
	"context"
	"fmt"
	"sync"

	"github.com/tryfix/bucketjoin/backend"
	"github.com/tryfix/bucketjoin/encoding"
	"github.com/tryfix/bucketjoin/join"
	"github.com/tryfix/errors"
)

type Sink[K cmp.Ordered, O any] interface {
	Write(ctx context.Context, records []join.Record[K, O]) error
}

type Func[K cmp.Ordered, O any] func(ctx context.Context, records []join.Record[K, O]) error

func (fn Func[K, O]) Write(ctx context.Context, records []join.Record[K, O]) error {
	return fn(ctx, records)
}

// Backend stores records in an ordered backend under sequenced keys, so
// records of one key keep their write order.
type Backend[K cmp.Ordered, O any] struct {
	backend backend.Backend
	keys    encoding.Encoder
	values  encoding.Encoder
	mu      sync.Mutex
	seq     uint64
}

func NewBackend[K cmp.Ordered, O any](b backend.Backend, keys, values encoding.Encoder) *Backend[K, O] {
	return &Backend[K, O]{backend: b, keys: keys, values: values}
}

func (b *Backend[K, O]) Write(ctx context.Context, records []join.Record[K, O]) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		key, err := b.keys.Encode(r.Key)
		if err != nil {
			return errors.WithPrevious(err, fmt.Sprintf(`cannot encode key [%v]`, r.Key))
		}

		val, err := b.values.Encode(r.Value)
		if err != nil {
			return errors.WithPrevious(err, fmt.Sprintf(`cannot encode value of [%v]`, r.Key))
		}

		b.seq++
		if err := b.backend.Set(encoding.SequencedKey(key, b.seq), val, 0); err != nil {
			return errors.WithPrevious(err, fmt.Sprintf(`cannot write to backend [%s]`, b.backend.Name()))
		}
	}

	return nil
}

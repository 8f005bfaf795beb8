package join

import (
	"cmp"
	"fmt"
	"hash/fnv"
	"slices"
)

type PartitionStrategy int

const (
	// RoundRobin assigns the i-th smallest key to worker i mod n.
	RoundRobin PartitionStrategy = iota
	// ContiguousRange splits the sorted keys into n ranges of near equal size.
	ContiguousRange
	// HashByKey assigns a key to fnv32a(key) mod n.
	HashByKey
)

func (s PartitionStrategy) String() string {
	switch s {
	case ContiguousRange:
		return `ContiguousRange`
	case HashByKey:
		return `HashByKey`
	}

	return `RoundRobin`
}

func ParsePartitionStrategy(s string) (PartitionStrategy, error) {
	for _, st := range []PartitionStrategy{RoundRobin, ContiguousRange, HashByKey} {
		if st.String() == s {
			return st, nil
		}
	}

	return RoundRobin, invalidArgument(`unknown partition strategy [%s]`, s)
}

// KeyPartition is the key subset of one worker. Keys are ascending.
type KeyPartition[K cmp.Ordered] struct {
	Worker int
	Keys   []K
}

// DistinctKeys returns the union of both key sets, ascending.
func DistinctKeys[K cmp.Ordered, L, R any](left []Row[K, L], right []Row[K, R]) []K {
	seen := make(map[K]struct{}, len(left))
	keys := make([]K, 0)
	for _, r := range left {
		if _, ok := seen[r.Key]; !ok {
			seen[r.Key] = struct{}{}
			keys = append(keys, r.Key)
		}
	}

	for _, r := range right {
		if _, ok := seen[r.Key]; !ok {
			seen[r.Key] = struct{}{}
			keys = append(keys, r.Key)
		}
	}

	slices.Sort(keys)
	return keys
}

// Partition splits sorted distinct keys into exactly n disjoint partitions
// whose union is keys. Partitions may be empty.
func Partition[K cmp.Ordered](keys []K, n int, strategy PartitionStrategy) ([]KeyPartition[K], error) {
	if n < 1 {
		return nil, invalidArgument(`worker count must be greater than 0, got %d`, n)
	}

	parts := make([]KeyPartition[K], n)
	for i := range parts {
		parts[i].Worker = i
	}

	switch strategy {
	case RoundRobin:
		for i, k := range keys {
			parts[i%n].Keys = append(parts[i%n].Keys, k)
		}

	case ContiguousRange:
		size, rem := len(keys)/n, len(keys)%n
		start := 0
		for i := range parts {
			end := start + size
			if i < rem {
				end++
			}
			parts[i].Keys = keys[start:end:end]
			start = end
		}

	case HashByKey:
		hasher := fnv.New32a()
		for _, k := range keys {
			hasher.Reset()
			if _, err := hasher.Write([]byte(fmt.Sprint(k))); err != nil {
				return nil, err
			}
			w := int(hasher.Sum32() % uint32(n))
			parts[w].Keys = append(parts[w].Keys, k)
		}

	default:
		return nil, invalidArgument(`unknown partition strategy [%d]`, strategy)
	}

	return parts, nil
}

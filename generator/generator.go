// Package generator produces random benchmark relations. A generator built
// with the same seed and clock yields the same rows.
package generator

import (
	"math/rand"
	"time"

	"github.com/tryfix/bucketjoin/tables"
	"github.com/tryfix/errors"
)

var (
	statuses     = []string{`Active`, `Inactive`, `Pending`, `Completed`}
	descriptions = []string{`Item A`, `Item B`, `Item C`, `Item D`, `Item E`}
)

const (
	keyLetters  = 5
	textLetters = `ABCDEFGHIJKLMNOPQRSTUVWXYZ`
)

type Generator struct {
	rnd *rand.Rand
	now time.Time
}

func New(seed int64, now time.Time) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed)), now: now}
}

// key draws keyLength letters from A..E, so there are 5^keyLength distinct keys.
func (g *Generator) key(keyLength int) string {
	b := make([]byte, keyLength)
	for i := range b {
		b[i] = byte('A' + g.rnd.Intn(keyLetters))
	}
	return string(b)
}

func (g *Generator) TableA(count, keyLength int) ([]tables.TableARow, error) {
	if count < 0 || keyLength < 1 {
		return nil, errors.Errorf(`invalid TableA size [%d] or key length [%d]`, count, keyLength)
	}

	rows := make([]tables.TableARow, count)
	for i := range rows {
		rows[i] = tables.TableARow{
			KeyField:    g.key(keyLength),
			Value1:      g.rnd.Intn(99) + 1,
			Value2:      g.rnd.Float64() * 100,
			Description: descriptions[g.rnd.Intn(len(descriptions))],
		}
	}

	return rows, nil
}

func (g *Generator) TableB(count, keyLength int) ([]tables.TableBRow, error) {
	if count < 0 || keyLength < 1 {
		return nil, errors.Errorf(`invalid TableB size [%d] or key length [%d]`, count, keyLength)
	}

	rows := make([]tables.TableBRow, count)
	for i := range rows {
		rows[i] = tables.TableBRow{
			KeyField: g.key(keyLength),
			Value3:   g.rnd.Intn(99) + 1,
			Value4:   g.now.AddDate(0, 0, -g.rnd.Intn(365)).Truncate(time.Second).UTC(),
			Status:   statuses[g.rnd.Intn(len(statuses))],
		}
	}

	return rows, nil
}

// Master emits keys 1..keyCount, each with a random number of rows in [min, max].
func (g *Generator) Master(keyCount, min, max int) ([]tables.MasterRow, error) {
	if err := validRange(keyCount, min, max); err != nil {
		return nil, err
	}

	var rows []tables.MasterRow
	for key := 1; key <= keyCount; key++ {
		n := min + g.rnd.Intn(max-min+1)
		for i := 0; i < n; i++ {
			rows = append(rows, tables.MasterRow{
				MKey:  key,
				MText: g.letter(),
				Num:   g.rnd.Intn(99) + 1,
			})
		}
	}

	return rows, nil
}

func (g *Generator) Slave(keyCount, min, max int) ([]tables.SlaveRow, error) {
	if err := validRange(keyCount, min, max); err != nil {
		return nil, err
	}

	var rows []tables.SlaveRow
	for key := 1; key <= keyCount; key++ {
		n := min + g.rnd.Intn(max-min+1)
		for i := 0; i < n; i++ {
			rows = append(rows, tables.SlaveRow{
				SKey:  key,
				SText: g.letter(),
				Num:   g.rnd.Float64() * 100,
			})
		}
	}

	return rows, nil
}

func (g *Generator) letter() string {
	return string(textLetters[g.rnd.Intn(len(textLetters))])
}

func validRange(keyCount, min, max int) error {
	if keyCount < 0 || min < 0 || max < min {
		return errors.Errorf(`invalid key count [%d] or records range [%d, %d]`, keyCount, min, max)
	}
	return nil
}

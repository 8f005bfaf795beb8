package source

import (
	"context"
	"reflect"
	"testing"

	"github.com/tryfix/bucketjoin/join"
)

func TestSlice_Rows(t *testing.T) {
	rows := []join.Row[string, int]{{Key: `BB`, Payload: 1}, {Key: `AA`, Payload: 2}, {Key: `BB`, Payload: 3}}

	got, err := NewSlice(rows, true).Rows(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := []join.Row[string, int]{{Key: `AA`, Payload: 2}, {Key: `BB`, Payload: 1}, {Key: `BB`, Payload: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf(`expected %v, got %v`, want, got)
	}

	if rows[0].Key != `BB` {
		t.Error(`caller rows modified`)
	}
}

func TestSlice_Rows_Unsorted(t *testing.T) {
	rows := []join.Row[string, int]{{Key: `BB`}, {Key: `AA`}}
	if _, err := NewSlice(rows, false).Rows(context.Background()); err == nil {
		t.Error(`expected error for unsorted rows`)
	}
}

func TestSlice_Rows_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewSlice[string, int](nil, false).Rows(ctx); err != context.Canceled {
		t.Errorf(`expected %v, got %v`, context.Canceled, err)
	}
}

func TestFunc_Rows(t *testing.T) {
	var src Source[int, string] = Func[int, string](func(ctx context.Context) ([]join.Row[int, string], error) {
		return []join.Row[int, string]{{Key: 1, Payload: `X`}}, nil
	})

	rows, err := src.Rows(context.Background())
	if err != nil || len(rows) != 1 {
		t.Errorf(`unexpected rows %v, %v`, rows, err)
	}
}

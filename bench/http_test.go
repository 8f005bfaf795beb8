package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/tryfix/log"
)

func TestRoutes(t *testing.T) {
	conf := testConfig()
	conf.Scenarios = []Scenario{ScenarioTables}
	conf.Workers = []int{2}

	h, err := NewHarness(conf, openDB(t), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(Routes(h, log.NewNoopLogger()))
	defer srv.Close()

	res, err := http.Post(srv.URL+`/runs`, `application/json`, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		t.Fatalf(`expected %d, got %d`, http.StatusCreated, res.StatusCode)
	}

	created := new(Report)
	if err := json.NewDecoder(res.Body).Decode(created); err != nil {
		t.Fatal(err)
	}

	if !created.Conforms() || len(created.Scenarios) != 1 {
		t.Errorf(`unexpected report %+v`, created)
	}

	res, err = http.Get(srv.URL + `/runs`)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	var list []*Report
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}

	if len(list) != 1 || list[0].Id != created.Id {
		t.Errorf(`unexpected run list %+v`, list)
	}

	res, err = http.Get(srv.URL + `/runs/` + created.Id.String())
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	got := new(Report)
	if err := json.NewDecoder(res.Body).Decode(got); err != nil {
		t.Fatal(err)
	}

	if got.Id != created.Id || got.Scenarios[0].Results[0].Records != created.Scenarios[0].Results[0].Records {
		t.Errorf(`expected %+v, got %+v`, created, got)
	}

	res, err = http.Get(srv.URL + `/timings`)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(res.Body); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(buf.String(), `tables.parallel.02`) {
		t.Errorf(`unexpected timings %s`, buf)
	}
}

func TestRoutes_Errors(t *testing.T) {
	h, err := NewHarness(testConfig(), openDB(t), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(Routes(h, log.NewNoopLogger()))
	defer srv.Close()

	for path, status := range map[string]int{
		`/runs/` + uuid.New().String(): http.StatusNotFound,
		`/runs/not-a-uuid`:             http.StatusBadRequest,
	} {
		res, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()

		if res.StatusCode != status {
			t.Errorf(`%s: expected %d, got %d`, path, status, res.StatusCode)
		}
	}

	// no generated tables yet
	res, err := http.Post(srv.URL+`/runs`, `application/json`, nil)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()

	if res.StatusCode != http.StatusInternalServerError {
		t.Errorf(`expected %d, got %d`, http.StatusInternalServerError, res.StatusCode)
	}
}

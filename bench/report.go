package bench

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
)

const (
	StrategyNative     = `native`
	StrategySequential = `sequential`
	StrategyParallel   = `parallel`
)

// Result is one timed join call.
type Result struct {
	Strategy string        `json:"strategy"`
	Workers  int           `json:"workers"`
	Duration time.Duration `json:"duration"`
	Records  int           `json:"records"`
	// Conforms is set when the result equals the native result.
	Conforms bool `json:"conforms"`
}

type ScenarioReport struct {
	Scenario  Scenario `json:"scenario"`
	LeftRows  int      `json:"left_rows"`
	RightRows int      `json:"right_rows"`
	Results   []Result `json:"results"`
}

// Conforms reports whether every strategy matched the native result.
func (s ScenarioReport) Conforms() bool {
	for _, r := range s.Results {
		if !r.Conforms {
			return false
		}
	}
	return true
}

type Report struct {
	Id        uuid.UUID        `json:"id"`
	Started   time.Time        `json:"started"`
	Finished  time.Time        `json:"finished"`
	Scenarios []ScenarioReport `json:"scenarios"`
}

func (r *Report) Conforms() bool {
	for _, s := range r.Scenarios {
		if !s.Conforms() {
			return false
		}
	}
	return true
}

func (r *Report) String() string {
	out := new(bytes.Buffer)
	fmt.Fprintf(out, "run %s (%s)\n", r.Id, r.Finished.Sub(r.Started))

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{`Scenario`, `Strategy`, `Workers`, `Duration`, `Records`, `Conforms`})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})

	for _, s := range r.Scenarios {
		for _, res := range s.Results {
			workers := `-`
			if res.Workers > 0 {
				workers = fmt.Sprint(res.Workers)
			}

			table.Append([]string{
				string(s.Scenario), res.Strategy, workers,
				res.Duration.String(), fmt.Sprint(res.Records), fmt.Sprint(res.Conforms),
			})
		}
	}
	table.Render()

	return out.String()
}

// Registry keeps the latest reports, oldest first.
type Registry struct {
	mu       sync.RWMutex
	capacity int
	reports  []*Report
}

func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	return &Registry{capacity: capacity}
}

func (r *Registry) Add(report *Report) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports = append(r.reports, report)
	if len(r.reports) > r.capacity {
		r.reports = r.reports[len(r.reports)-r.capacity:]
	}
}

func (r *Registry) Get(id uuid.UUID) (*Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rep := range r.reports {
		if rep.Id == id {
			return rep, true
		}
	}

	return nil, false
}

func (r *Registry) List() []*Report {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]*Report(nil), r.reports...)
}

package graph

import (
	"cmp"
	"fmt"

	"github.com/awalterschulze/gographviz"
	"github.com/tryfix/bucketjoin/join"
	"github.com/tryfix/errors"
)

const parent = `root`

// Graph draws how a parallel join spreads its keys over workers.
type Graph struct {
	vizGraph *gographviz.Graph
}

func NewGraph(name string) (*Graph, error) {
	g := gographviz.NewGraph()
	steps := []func() error{
		func() error { return g.SetName(parent) },
		func() error { return g.SetDir(true) },
		func() error { return g.AddAttr(parent, `rankdir`, `LR`) },
		func() error { return g.AddAttr(parent, `splines`, `ortho`) },
		func() error {
			return g.AddNode(parent, `left`, source(`Left`))
		},
		func() error {
			return g.AddNode(parent, `right`, source(`Right`))
		},
		func() error {
			return g.AddNode(parent, `merge`, map[string]string{
				`fontcolor`: `grey100`,
				`fillcolor`: `limegreen`,
				`style`:     `filled`,
				`label`:     fmt.Sprintf(`"%s"`, name),
			})
		},
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return nil, errors.WithPrevious(err, `cannot build graph`)
		}
	}

	return &Graph{vizGraph: g}, nil
}

func source(label string) map[string]string {
	return map[string]string{
		`color`:     `black`,
		`fillcolor`: `deepskyblue1`,
		`style`:     `filled`,
		`shape`:     `oval`,
		`label`:     fmt.Sprintf(`"%s"`, label),
	}
}

// Worker adds a worker fed by both relations and writing to the merge node.
func (g *Graph) Worker(id int, label string) error {
	name := fmt.Sprintf(`worker_%d`, id)
	if err := g.vizGraph.AddNode(parent, name, map[string]string{
		`fontcolor`: `grey100`,
		`fillcolor`: `slateblue4`,
		`style`:     `filled`,
		`shape`:     `box`,
		`label`:     fmt.Sprintf(`"%s"`, label),
	}); err != nil {
		return err
	}

	for _, edge := range [][2]string{{`left`, name}, {`right`, name}, {name, `merge`}} {
		if err := g.vizGraph.AddEdge(edge[0], edge[1], true, nil); err != nil {
			return err
		}
	}

	return nil
}

func (g *Graph) Build() string {
	return g.vizGraph.String()
}

// Plan renders the key partitions of a parallel join as a DOT graph. Workers
// that got no keys are left out.
func Plan[K cmp.Ordered](name string, partitions []join.KeyPartition[K]) (string, error) {
	g, err := NewGraph(name)
	if err != nil {
		return ``, err
	}

	for _, p := range partitions {
		if len(p.Keys) == 0 {
			continue
		}

		label := fmt.Sprintf(`worker %d\n%d keys\n%v`, p.Worker, len(p.Keys), p.Keys[0])
		if len(p.Keys) > 1 {
			label = fmt.Sprintf(`worker %d\n%d keys\n%v .. %v`, p.Worker, len(p.Keys), p.Keys[0], p.Keys[len(p.Keys)-1])
		}

		if err := g.Worker(p.Worker, label); err != nil {
			return ``, errors.WithPrevious(err, fmt.Sprintf(`cannot draw worker %d`, p.Worker))
		}
	}

	return g.Build(), nil
}

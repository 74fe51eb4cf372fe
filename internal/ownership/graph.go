// Package ownership builds ownership graphs and flattens them into the
// effective percentages held by natural persons.
package ownership

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ppiankov/ubotrace/internal/model"
)

// Stake is a name with a coerced percentage
type Stake struct {
	Name       string
	Percentage float64
}

type stakes = orderedmap.OrderedMap[string, float64]

// Graph accumulates a root entity's direct shareholdings and the recorded
// shareholdings of non-natural shareholders. Each accepted mutation bumps
// the generation so resolvers can tell their cached result is stale.
//
// A Graph is not safe for concurrent mutation.
type Graph struct {
	direct     *stakes
	structures *orderedmap.OrderedMap[string, *stakes]
	coerce     Coercer
	generation uint64
	rejections []model.Omission
}

// GraphOption configures a Graph
type GraphOption func(*Graph)

// WithCoercer sets how raw percentage values are converted
func WithCoercer(c Coercer) GraphOption {
	return func(g *Graph) {
		if c != nil {
			g.coerce = c
		}
	}
}

// NewGraph creates an empty graph using strict coercion by default
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		direct:     orderedmap.New[string, float64](),
		structures: orderedmap.New[string, *stakes](),
		coerce:     StrictPercentage,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Outcome reports what an ingestion call did. Rejections are never errors:
// the default behaviour is to drop them, callers may log or audit them.
type Outcome struct {
	Recorded bool             // Graph state changed
	Accepted int              // Values coerced successfully
	Rejected []model.Omission // Values or structures that were dropped
}

// AddDirectShareholder records a direct stake in the root entity,
// replacing any earlier value for the same name. A value that cannot be
// coerced is dropped and the graph is left untouched.
func (g *Graph) AddDirectShareholder(name string, value any) Outcome {
	pct, ok := g.coerce(value)
	if !ok {
		rej := model.Omission{
			Kind:   model.OmissionInvalidPercentage,
			Holder: name,
			Value:  rawString(value),
		}
		g.rejections = append(g.rejections, rej)
		return Outcome{Rejected: []model.Omission{rej}}
	}

	g.direct.Set(name, pct)
	g.generation++
	return Outcome{Recorded: true, Accepted: 1}
}

// SetEntityStructure records the shareholders of a non-natural entity,
// replacing any earlier structure for it. Values that cannot be coerced
// are dropped individually; when nothing usable remains no structure is
// recorded and the graph is left untouched.
func (g *Graph) SetEntityStructure(entity string, holders *model.Holdings) Outcome {
	var out Outcome
	normalized := orderedmap.New[string, float64]()

	if holders != nil {
		for pair := holders.Oldest(); pair != nil; pair = pair.Next() {
			pct, ok := g.coerce(pair.Value)
			if !ok {
				out.Rejected = append(out.Rejected, model.Omission{
					Kind:   model.OmissionInvalidPercentage,
					Entity: entity,
					Holder: pair.Key,
					Value:  rawString(pair.Value),
				})
				continue
			}
			normalized.Set(pair.Key, pct)
			out.Accepted++
		}
	}

	if normalized.Len() == 0 {
		out.Rejected = append(out.Rejected, model.Omission{
			Kind:   model.OmissionEmptyStructure,
			Entity: entity,
		})
		g.rejections = append(g.rejections, out.Rejected...)
		return out
	}

	g.rejections = append(g.rejections, out.Rejected...)
	g.structures.Set(entity, normalized)
	g.generation++
	out.Recorded = true
	return out
}

// Load applies an acquisition payload: every direct shareholder, then
// every entity structure, in payload order.
func (g *Graph) Load(p *model.Payload) []Outcome {
	if p == nil {
		return nil
	}

	var outcomes []Outcome
	if p.DirectShareholders != nil {
		for pair := p.DirectShareholders.Oldest(); pair != nil; pair = pair.Next() {
			outcomes = append(outcomes, g.AddDirectShareholder(pair.Key, pair.Value))
		}
	}
	if p.EntityStructure != nil {
		for pair := p.EntityStructure.Oldest(); pair != nil; pair = pair.Next() {
			outcomes = append(outcomes, g.SetEntityStructure(pair.Key, pair.Value))
		}
	}
	return outcomes
}

// Generation increases with every accepted mutation
func (g *Graph) Generation() uint64 {
	return g.generation
}

// DirectShareholders returns the root's direct stakes in insertion order
func (g *Graph) DirectShareholders() []Stake {
	return collect(g.direct)
}

// EntityStructure returns the recorded stakes of entity, if any
func (g *Graph) EntityStructure(entity string) ([]Stake, bool) {
	s, ok := g.structures.Get(entity)
	if !ok {
		return nil, false
	}
	return collect(s), true
}

// Entities returns every entity with a recorded structure, in insertion order
func (g *Graph) Entities() []string {
	names := make([]string, 0, g.structures.Len())
	for pair := g.structures.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Rejections returns every value or structure dropped since the graph was created
func (g *Graph) Rejections() []model.Omission {
	return append([]model.Omission(nil), g.rejections...)
}

// Empty reports whether the root has no direct shareholders
func (g *Graph) Empty() bool {
	return g.direct.Len() == 0
}

func collect(s *stakes) []Stake {
	out := make([]Stake, 0, s.Len())
	for pair := s.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Stake{Name: pair.Key, Percentage: pair.Value})
	}
	return out
}

func rawString(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}

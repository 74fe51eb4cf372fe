package ownership

import (
	"log/slog"

	"github.com/ppiankov/ubotrace/internal/classify"
	"github.com/ppiankov/ubotrace/internal/model"
)

// Resolver flattens a Graph into the effective percentages held by natural
// persons. Percentages compose multiplicatively along each ownership path
// (inbound * sub / 100 per level) and are summed across paths.
//
// The flattened result is cached on the resolver and reused until the
// graph is mutated. A Resolver must not be used while its graph is being
// modified.
type Resolver struct {
	graph      *Graph
	classifier classify.Classifier
	logger     *slog.Logger
	strict     bool

	cached    *Result
	cachedGen uint64
}

// Option configures a Resolver
type Option func(*Resolver)

// WithClassifier sets the natural person classifier
func WithClassifier(c classify.Classifier) Option {
	return func(r *Resolver) {
		if c != nil {
			r.classifier = c
		}
	}
}

// WithLogger sets the logger used in strict mode
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStrict logs every omitted contribution as a warning
func WithStrict(strict bool) Option {
	return func(r *Resolver) {
		r.strict = strict
	}
}

// NewResolver creates a resolver over g using the default indicator classifier
func NewResolver(g *Graph, opts ...Option) *Resolver {
	r := &Resolver{
		graph:      g,
		classifier: classify.NewIndicatorClassifier(nil),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Graph returns the graph being resolved
func (r *Resolver) Graph() *Graph {
	return r.graph
}

// Classifier returns the classifier in use
func (r *Resolver) Classifier() classify.Classifier {
	return r.classifier
}

// Invalidate discards the cached result
func (r *Resolver) Invalidate() {
	r.cached = nil
}

// CalculateUltimateOwnership returns the flattened ownership. Repeated calls
// without an intervening graph mutation return the same *Result.
//
// It never fails: cycles and entities without a recorded structure simply
// contribute nothing and are listed in Result.Omissions.
func (r *Resolver) CalculateUltimateOwnership() *Result {
	if r.cached != nil && r.cachedGen == r.graph.Generation() {
		return r.cached
	}

	result := newResult()
	for pair := r.graph.direct.Oldest(); pair != nil; pair = pair.Next() {
		if r.classifier.IsNaturalPerson(pair.Key) {
			result.add(pair.Key, pair.Value)
			continue
		}
		r.resolveEntity(pair.Key, pair.Value, result)
	}

	r.cached = result
	r.cachedGen = r.graph.Generation()
	return result
}

// frame is one pending step of the depth-first walk
type frame struct {
	name    string
	inbound float64
	natural bool // credit inbound to name
	leave   bool // pop name off the current path
}

// resolveEntity walks everything reachable from entity with an explicit
// stack, so very deep chains cannot exhaust the goroutine stack. Children
// are pushed in reverse so they are visited in recorded order, which keeps
// accumulation order identical to a plain recursive walk.
//
// The visited set only holds the entities on the current path: a sibling
// branch may still pass through an entity seen elsewhere.
func (r *Resolver) resolveEntity(entity string, inbound float64, result *Result) {
	onPath := make(map[string]bool)
	var path []string

	stack := []frame{{name: entity, inbound: inbound}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch {
		case f.leave:
			delete(onPath, f.name)
			path = path[:len(path)-1]

		case f.natural:
			result.add(f.name, f.inbound)

		case onPath[f.name]:
			r.omit(result, model.OmissionCycle, f, path)

		default:
			holders, ok := r.graph.structures.Get(f.name)
			if !ok {
				r.omit(result, model.OmissionUnresolvedEntity, f, path)
				continue
			}

			onPath[f.name] = true
			path = append(path, f.name)
			stack = append(stack, frame{name: f.name, leave: true})

			mark := len(stack)
			for pair := holders.Oldest(); pair != nil; pair = pair.Next() {
				stack = append(stack, frame{
					name:    pair.Key,
					inbound: f.inbound * pair.Value / 100.0,
					natural: r.classifier.IsNaturalPerson(pair.Key),
				})
			}
			reverse(stack[mark:])
		}
	}
}

func (r *Resolver) omit(result *Result, kind model.OmissionKind, f frame, path []string) {
	o := model.Omission{
		Kind:       kind,
		Entity:     f.name,
		Path:       append(append([]string(nil), path...), f.name),
		Percentage: f.inbound,
	}
	result.omissions = append(result.omissions, o)

	if r.strict {
		r.logger.Warn("ownership contribution omitted",
			"kind", string(kind),
			"entity", f.name,
			"path", o.Path,
			"percentage", f.inbound,
		)
	}
}

func reverse(frames []frame) {
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
}

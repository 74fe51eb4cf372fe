// Package classify decides whether a shareholder name denotes a natural
// person or a non-natural entity (company, fund, partnership, bank, ...).
//
// Classification is heuristic and directly controls which names end up in
// the ultimate ownership result, so it is expressed as an interface and the
// substring rule is only one implementation.
package classify

import (
	"strings"

	"github.com/ppiankov/ubotrace/internal/model"
)

// Classifier decides whether a name denotes a natural person
type Classifier interface {
	IsNaturalPerson(name string) bool
}

// Func adapts an ordinary function to the Classifier interface
type Func func(name string) bool

// IsNaturalPerson calls f(name)
func (f Func) IsNaturalPerson(name string) bool {
	return f(name)
}

// IndicatorClassifier treats a name as a non-natural entity when it
// contains any of a fixed set of indicator substrings.
type IndicatorClassifier struct {
	indicators     []string
	emptyIsNatural bool
}

// NewIndicatorClassifier creates a classifier from configuration.
// A nil config uses the default indicator set.
func NewIndicatorClassifier(config *model.ClassifierConfig) *IndicatorClassifier {
	if config == nil {
		config = &model.DefaultConfig().Classifier
	}

	indicators := config.Indicators
	if len(indicators) == 0 {
		indicators = model.DefaultIndicators
	}

	c := &IndicatorClassifier{
		indicators:     make([]string, 0, len(indicators)+len(config.ExtraIndicators)),
		emptyIsNatural: config.EmptyIsNatural,
	}
	for _, ind := range append(append([]string(nil), indicators...), config.ExtraIndicators...) {
		if ind = strings.TrimSpace(ind); ind != "" {
			c.indicators = append(c.indicators, ind)
		}
	}
	return c
}

// IsNaturalPerson reports whether name contains none of the indicators.
// Blank names are not attributed to a person unless configured otherwise.
func (c *IndicatorClassifier) IsNaturalPerson(name string) bool {
	if strings.TrimSpace(name) == "" {
		return c.emptyIsNatural
	}
	for _, ind := range c.indicators {
		if strings.Contains(name, ind) {
			return false
		}
	}
	return true
}

// Indicators returns the active indicator set
func (c *IndicatorClassifier) Indicators() []string {
	return append([]string(nil), c.indicators...)
}

// ListClassifier resolves names from explicit allow/deny lists and defers
// everything else to a fallback classifier.
type ListClassifier struct {
	natural  map[string]bool
	entities map[string]bool
	fallback Classifier
}

// NewListClassifier creates a list classifier. A nil fallback classifies
// every unlisted name as a non-natural entity.
func NewListClassifier(natural, entities []string, fallback Classifier) *ListClassifier {
	c := &ListClassifier{
		natural:  make(map[string]bool, len(natural)),
		entities: make(map[string]bool, len(entities)),
		fallback: fallback,
	}
	for _, name := range natural {
		c.natural[name] = true
	}
	for _, name := range entities {
		c.entities[name] = true
	}
	return c
}

// IsNaturalPerson checks the entity list first, then the natural list
func (c *ListClassifier) IsNaturalPerson(name string) bool {
	if c.entities[name] {
		return false
	}
	if c.natural[name] {
		return true
	}
	if c.fallback == nil {
		return false
	}
	return c.fallback.IsNaturalPerson(name)
}

// New builds the classifier described by config: the indicator rule,
// wrapped with explicit overrides when any are configured.
func New(config *model.ClassifierConfig) Classifier {
	base := NewIndicatorClassifier(config)
	if config == nil || (len(config.Natural) == 0 && len(config.Entities) == 0) {
		return base
	}
	return NewListClassifier(config.Natural, config.Entities, base)
}

// Label returns the human-readable classification used in reports
func Label(c Classifier, name string) string {
	if c.IsNaturalPerson(name) {
		return "natural person"
	}
	return "entity"
}

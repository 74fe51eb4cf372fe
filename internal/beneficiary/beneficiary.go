// Package beneficiary selects reportable beneficial owners from a flattened
// ownership result and derives diagnostic signals for the report.
package beneficiary

import (
	"fmt"
	"sort"

	"github.com/ppiankov/ubotrace/internal/classify"
	"github.com/ppiankov/ubotrace/internal/model"
	"github.com/ppiankov/ubotrace/internal/ownership"
)

// DefaultThreshold is the usual disclosure threshold in percent
const DefaultThreshold = 30.0

// MajorShareholders returns the persons holding at least threshold percent,
// highest first. Equal percentages keep the result's first-seen order.
func MajorShareholders(result *ownership.Result, threshold float64) []model.BeneficialOwner {
	if result == nil {
		return []model.BeneficialOwner{}
	}

	owners := make([]model.BeneficialOwner, 0)
	for _, s := range result.Stakes() {
		if s.Percentage >= threshold {
			owners = append(owners, model.BeneficialOwner{Name: s.Name, Percentage: s.Percentage})
		}
	}

	sort.SliceStable(owners, func(i, j int) bool {
		return owners[i].Percentage > owners[j].Percentage
	})
	return owners
}

// Assessor derives diagnostic signals from a resolved graph
type Assessor struct {
	threshold float64
}

// NewAssessor creates an assessor for the given threshold
func NewAssessor(threshold float64) *Assessor {
	return &Assessor{threshold: threshold}
}

// Signals reports everything that makes the totals incomplete or suspect.
// Signals never change the computed figures.
func (a *Assessor) Signals(g *ownership.Graph, result *ownership.Result, owners []model.BeneficialOwner) []model.Signal {
	signals := make([]model.Signal, 0)

	if s, ok := a.unresolved(result); ok {
		signals = append(signals, s)
	}
	if s, ok := a.cycles(result); ok {
		signals = append(signals, s)
	}
	if s, ok := a.rejected(g); ok {
		signals = append(signals, s)
	}
	signals = append(signals, a.overAllocation(g)...)

	if len(owners) == 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalNoBeneficialOwner,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("No natural person reaches the %.2f%% threshold", a.threshold),
			Data: map[string]interface{}{
				"threshold":       a.threshold,
				"natural_persons": result.Len(),
				"highest_holding": highest(result),
			},
		})
	}

	return signals
}

func (a *Assessor) unresolved(result *ownership.Result) (model.Signal, bool) {
	entities, dropped := summarize(result.Omissions(), model.OmissionUnresolvedEntity)
	if len(entities) == 0 {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalUnresolvedEntities,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d entities have no recorded shareholders; %.2f%% of ownership could not be traced", len(entities), dropped),
		Data: map[string]interface{}{
			"entities":         entities,
			"untraced_percent": dropped,
		},
	}, true
}

func (a *Assessor) cycles(result *ownership.Result) (model.Signal, bool) {
	entities, dropped := summarize(result.Omissions(), model.OmissionCycle)
	if len(entities) == 0 {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalCycles,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Cross-holdings through %d entities were truncated", len(entities)),
		Data: map[string]interface{}{
			"entities":          entities,
			"truncated_percent": dropped,
		},
	}, true
}

func (a *Assessor) rejected(g *ownership.Graph) (model.Signal, bool) {
	rejections := g.Rejections()
	if len(rejections) == 0 {
		return model.Signal{}, false
	}

	values := make([]string, 0, len(rejections))
	for _, r := range rejections {
		switch r.Kind {
		case model.OmissionEmptyStructure:
			values = append(values, fmt.Sprintf("%s: no usable holders", r.Entity))
		case model.OmissionInvalidPercentage:
			owner := r.Entity
			if owner == "" {
				owner = "(root)"
			}
			values = append(values, fmt.Sprintf("%s <- %s: %q", owner, r.Holder, r.Value))
		}
	}

	return model.Signal{
		Type:        model.SignalRejectedValues,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d values were dropped at ingestion", len(rejections)),
		Data: map[string]interface{}{
			"rejections": values,
		},
	}, true
}

// overAllocation flags holdings that sum above 100%. They are reported as
// recorded; multiple equity classes make such data legitimate at times.
func (a *Assessor) overAllocation(g *ownership.Graph) []model.Signal {
	var signals []model.Signal

	check := func(owner string, stakes []ownership.Stake) {
		total := 0.0
		for _, s := range stakes {
			total += s.Percentage
		}
		if total <= 100.0+1e-9 {
			return
		}
		signals = append(signals, model.Signal{
			Type:        model.SignalOverAllocation,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("Holdings of %s sum to %.2f%%", owner, total),
			Data: map[string]interface{}{
				"entity":  owner,
				"total":   total,
				"holders": len(stakes),
			},
		})
	}

	check("(root)", g.DirectShareholders())
	for _, entity := range g.Entities() {
		stakes, _ := g.EntityStructure(entity)
		check(entity, stakes)
	}
	return signals
}

// summarize returns the distinct entities of one omission kind, in first
// occurrence order, and the total percentage they dropped.
func summarize(omissions []model.Omission, kind model.OmissionKind) ([]string, float64) {
	var entities []string
	seen := make(map[string]bool)
	dropped := 0.0
	for _, o := range omissions {
		if o.Kind != kind {
			continue
		}
		dropped += o.Percentage
		if !seen[o.Entity] {
			seen[o.Entity] = true
			entities = append(entities, o.Entity)
		}
	}
	return entities, dropped
}

func highest(result *ownership.Result) float64 {
	top := 0.0
	for _, s := range result.Stakes() {
		if s.Percentage > top {
			top = s.Percentage
		}
	}
	return top
}

// Holdings converts stakes to report holdings with their classification
func Holdings(c classify.Classifier, stakes []ownership.Stake) []model.Holding {
	out := make([]model.Holding, 0, len(stakes))
	for _, s := range stakes {
		out = append(out, model.Holding{
			Name:       s.Name,
			Percentage: s.Percentage,
			Natural:    c.IsNaturalPerson(s.Name),
		})
	}
	return out
}

package model

import (
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Report is the complete ownership analysis for one subject entity
type Report struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	AnalyzedAt time.Time `json:"analyzed_at"`
	Source     string    `json:"source,omitempty"`
	Threshold  float64   `json:"threshold"`

	DirectShareholders []Holding        `json:"direct_shareholders"`
	EntityStructure    []EntityHoldings `json:"entity_structure,omitempty"`

	// UltimateOwnership maps natural persons to their effective percentage,
	// in first-seen order.
	UltimateOwnership *orderedmap.OrderedMap[string, float64] `json:"ultimate_ownership"`
	BeneficialOwners  []BeneficialOwner                       `json:"beneficial_owners"`

	Omissions []Omission `json:"omissions,omitempty"`
	Signals   []Signal   `json:"signals"`

	LLM *LLMSummary `json:"llm,omitempty"` // Optional narrative, never affects the figures
}

// Holding is one recorded stake with its classification
type Holding struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	Natural    bool    `json:"natural"`
}

// EntityHoldings is the recorded shareholding of one non-natural entity
type EntityHoldings struct {
	Entity  string    `json:"entity"`
	Holders []Holding `json:"holders"`
}

// BeneficialOwner is a natural person at or above the disclosure threshold
type BeneficialOwner struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

// OmissionKind classifies why a contribution is missing from the totals
type OmissionKind string

const (
	OmissionInvalidPercentage OmissionKind = "invalid_percentage" // Value could not be coerced to a number
	OmissionEmptyStructure    OmissionKind = "empty_structure"    // Entity structure had no usable holders
	OmissionUnresolvedEntity  OmissionKind = "unresolved_entity"  // Entity has no recorded structure
	OmissionCycle             OmissionKind = "cycle"              // Entity already on the current path
)

// Omission records a contribution that was excluded from the result
type Omission struct {
	Kind       OmissionKind `json:"kind"`
	Entity     string       `json:"entity,omitempty"`     // Entity whose holdings or contribution is affected
	Holder     string       `json:"holder,omitempty"`     // Shareholder whose value was rejected
	Value      string       `json:"value,omitempty"`      // Rejected raw value
	Path       []string     `json:"path,omitempty"`       // Entity chain from the root, ending at Entity
	Percentage float64      `json:"percentage,omitempty"` // Inbound effective percentage that was dropped
}

// Signal represents a diagnostic signal with transparent data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalUnresolvedEntities SignalType = "unresolved_entities" // Entities whose ownership could not be traced
	SignalCycles             SignalType = "cycles"              // Cross-holdings truncated during resolution
	SignalRejectedValues     SignalType = "rejected_values"     // Percentages dropped at ingestion
	SignalOverAllocation     SignalType = "allocation_over_100" // Holdings of one entity sum above 100%
	SignalNoBeneficialOwner  SignalType = "no_beneficial_owner" // Nobody reaches the threshold
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// LLMSummary contains an optional generated narrative.
// It is rendered separately and never changes any computed figure.
type LLMSummary struct {
	Enabled       bool     `json:"enabled"`
	Provider      string   `json:"provider,omitempty"`
	Model         string   `json:"model,omitempty"`
	StrictFigures bool     `json:"strict_figures"`
	SummaryMD     string   `json:"summary_md,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

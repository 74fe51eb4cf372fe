package llm

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var figurePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[%％]`)

// extractFigures returns the distinct percentages quoted in text, as written
func extractFigures(text string) []string {
	matches := figurePattern.FindAllStringSubmatch(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			unique = append(unique, m[1])
		}
	}
	return unique
}

// checkFigures verifies every quoted percentage matches an allowed figure.
// A figure quoted with fewer decimals only needs to match after rounding.
func checkFigures(quoted []string, allowed []float64) error {
	for _, q := range quoted {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil {
			return fmt.Errorf("FIGURE LEAK: unparseable figure %q", q)
		}
		if !figureAllowed(q, v, allowed) {
			return fmt.Errorf("FIGURE LEAK: LLM quoted a figure not in the report: %s%%", q)
		}
	}
	return nil
}

func figureAllowed(text string, v float64, allowed []float64) bool {
	decimals := 0
	if i := strings.IndexByte(text, '.'); i >= 0 {
		decimals = len(text) - i - 1
	}
	tolerance := 0.5*math.Pow(10, -float64(decimals)) + 1e-9

	for _, a := range allowed {
		if math.Abs(a-v) <= tolerance {
			return true
		}
	}
	return false
}

// verifyFigures extracts the quoted figures and, in strict mode, rejects
// any that are not in the allowlist
func verifyFigures(strict bool, summary string, allowed []float64) ([]string, error) {
	quoted := extractFigures(summary)
	if strict {
		if err := checkFigures(quoted, allowed); err != nil {
			return nil, err
		}
	}
	return quoted, nil
}

// checkedSummary trims a provider's narrative and verifies its figures
// before it is handed back.
func checkedSummary(strict bool, allowed []float64, text, model string, tokens int) (*SummarizeResponse, error) {
	summary := strings.TrimSpace(text)
	quoted, err := verifyFigures(strict, summary, allowed)
	if err != nil {
		return nil, err
	}
	return &SummarizeResponse{
		Summary:       summary,
		QuotedFigures: quoted,
		Model:         model,
		TokensUsed:    tokens,
	}, nil
}

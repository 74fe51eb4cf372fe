package ownership

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Coercer converts a raw percentage value to a number. The boolean result
// is false when the value must be dropped.
type Coercer func(value any) (float64, bool)

const (
	PercentModeStrict  = "strict"
	PercentModeLenient = "lenient"
)

// CoercerFor returns the coercer for a configured percent mode.
// Unknown modes fall back to strict.
func CoercerFor(mode string) Coercer {
	if strings.EqualFold(strings.TrimSpace(mode), PercentModeLenient) {
		return LenientPercentage
	}
	return StrictPercentage
}

// StrictPercentage accepts numbers, booleans and numeric strings (surrounding
// whitespace ignored). Nil, blank strings, NaN, infinities and anything
// non-numeric are rejected.
func StrictPercentage(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		return finite(strconv.ParseFloat(s, 64))
	}
	return finite(cast.ToFloat64E(value))
}

func finite(f float64, err error) (float64, bool) {
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// registryNoise are qualifiers registries put around ratio figures
// ("约" about, "少于" less than, "超过" more than, "以上"/"以下" above/below).
var registryNoise = strings.NewReplacer(
	"%", "", "约", "", "~", "", "<", "", ">", "",
	"少于", "", "超过", "", "以上", "", "以下", "", ",", "",
)

// LenientPercentage additionally understands ratio text as shown on
// registry pages, e.g. "约 35.5％", "<5%" or "1,000".
func LenientPercentage(value any) (float64, bool) {
	s, ok := value.(string)
	if !ok {
		return StrictPercentage(value)
	}
	if f, ok := StrictPercentage(s); ok {
		return f, true
	}

	text := strings.NewReplacer("％", "%", "﹪", "%").Replace(s)
	if m := percentPattern.FindStringSubmatch(text); m != nil {
		return finite(strconv.ParseFloat(m[1], 64))
	}

	digits := strings.TrimSpace(registryNoise.Replace(text))
	if digits == "" {
		return 0, false
	}
	return finite(strconv.ParseFloat(digits, 64))
}

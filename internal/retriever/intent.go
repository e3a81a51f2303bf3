package retriever

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent names a question category that earns content-dependent bonuses
type Intent string

const (
	IntentSpecification Intent = "specification"
	IntentLoadLimit     Intent = "load_limit"
	IntentFeature       Intent = "feature"
	IntentAngle         Intent = "angle"
	IntentModelNumber   Intent = "model_number"
	IntentBrand         Intent = "brand"
)

var (
	specTriggers      = []string{"規格", "spec", "specification"}
	loadLimitTriggers = []string{"承重", "載重", "負重", "load limit", "weight limit"}
	featureTriggers   = []string{"特色", "功能", "特點", "feature"}
	angleTriggers     = []string{"角度", "調整", "可調", "背靠", "angle", "degree", "°"}

	// DefaultBrands are matched against the question and, when present there,
	// against candidate content
	DefaultBrands = []string{"ferno"}
)

// quantity matches a decimal number, allowing thousands separators
const quantity = `\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`

var (
	thresholdPattern = regexp.MustCompile(`(` + quantity + `)\s*(?:kg|公斤)`)
	kgPattern        = regexp.MustCompile(`(` + quantity + `)\s*kg`)
	unitTokenPattern = regexp.MustCompile(`\d\s*(?:mm|in|kg|lbs?)\b|\b(?:mm|kg|lbs?)\b`)
	numberPattern    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	quantityUnits    = []string{"kg", "公斤", "lbs", "lb", "mm", "cm", "in", "°", "%", "度"}
	bulletMarkers    = "▪●■◆►•※◎"
)

// query is the lower-cased question together with the values extracted from
// it once per retrieval
type query struct {
	text      string
	threshold float64
	hasLimit  bool
	number    string
	brands    []string

	modelPattern   *regexp.Regexp
	typePattern    *regexp.Regexp
	isolatedNumber *regexp.Regexp
}

// bonusRule scores one piece of evidence in lower-cased candidate content
type bonusRule struct {
	name  string
	apply func(q *query, content string) float64
}

// intentRule maps trigger keywords to the bonus rules they enable. detect
// overrides trigger matching for intents derived from extracted values.
type intentRule struct {
	intent   Intent
	triggers []string
	detect   func(q *query) bool
	rules    []bonusRule
}

// profile is the read-only preference table. Every rule of every detected
// intent is applied and bonuses add up.
var profile = []intentRule{
	{
		intent:   IntentSpecification,
		triggers: concat(specTriggers, loadLimitTriggers),
		rules: []bonusRule{
			{"specifications", when(0.35, containsAny("specifications"))},
			{"unit system", when(0.20, containsAny("imperial", "metric"))},
			{"unit token", when(0.15, unitTokenPattern.MatchString)},
		},
	},
	{
		intent:   IntentLoadLimit,
		triggers: loadLimitTriggers,
		rules: []bonusRule{
			{"threshold", thresholdBonus},
			{"limit phrase", when(0.20, containsAny("load limit", "weight limit"))},
			{"limit phrase without threshold", withoutThreshold(0.25, containsAny("load limit", "weight limit"))},
			{"max load", withoutThreshold(0.25, containsAny("最大載重", "max load"))},
			{"weight unit", withoutThreshold(0.10, containsAny("kg", "lb"))},
		},
	},
	{
		intent:   IntentFeature,
		triggers: featureTriggers,
		rules: []bonusRule{
			{"bullets", when(0.20, func(c string) bool { return strings.ContainsAny(c, bulletMarkers) })},
			{"features", when(0.20, containsAny("features"))},
			{"converts", when(0.20, containsAny("converts"))},
			{"wheels", when(0.20, containsAny("wheels"))},
			{"sidearms", when(0.20, containsAny("sidearms"))},
		},
	},
	{
		intent:   IntentAngle,
		triggers: angleTriggers,
		rules: []bonusRule{
			{"angle", when(0.30, containsAny("angle", "°", "backrest"))},
		},
	},
	{
		intent: IntentModelNumber,
		detect: func(q *query) bool { return q.number != "" },
		rules:  []bonusRule{{"model number", modelNumberBonus}},
	},
	{
		intent: IntentBrand,
		detect: func(q *query) bool { return len(q.brands) > 0 },
		rules:  []bonusRule{{"brand", brandBonus}},
	},
}

// newQuery lower-cases question and extracts the load threshold, the first
// bare number and any brand hints
func newQuery(question string, brands []string) *query {
	q := &query{text: strings.ToLower(question)}

	if m := thresholdPattern.FindStringSubmatch(q.text); m != nil {
		if v, err := parseQuantity(m[1]); err == nil {
			q.threshold, q.hasLimit = v, true
		}
	}

	q.number = bareNumber(q.text)
	if q.number != "" {
		n := regexp.QuoteMeta(q.number)
		q.modelPattern = regexp.MustCompile(`\bmodel\s*(?:no\.?\s*)?[:#]?\s*` + n + `(?:[^0-9.]|$)`)
		q.typePattern = regexp.MustCompile(`(?:^|[^0-9.])` + n + `\s?型`)
		q.isolatedNumber = regexp.MustCompile(`(?:^|[^0-9a-z.])` + n + `(?:[^0-9a-z.]|$)`)
	}

	for _, b := range brands {
		b = strings.ToLower(b)
		if b != "" && strings.Contains(q.text, b) {
			q.brands = append(q.brands, b)
		}
	}
	return q
}

// Intents returns the intents detected in question in table order
func Intents(question string) []Intent {
	return newQuery(question, DefaultBrands).intents()
}

func (q *query) intents() []Intent {
	var out []Intent
	for i := range profile {
		if profile[i].matches(q) {
			out = append(out, profile[i].intent)
		}
	}
	return out
}

func (r *intentRule) matches(q *query) bool {
	if r.detect != nil {
		return r.detect(q)
	}
	for _, t := range r.triggers {
		if strings.Contains(q.text, t) {
			return true
		}
	}
	return false
}

// bonus sums every applicable rule for content
func (q *query) bonus(content string) float64 {
	content = strings.ToLower(content)
	var total float64
	for i := range profile {
		if !profile[i].matches(q) {
			continue
		}
		for _, rule := range profile[i].rules {
			total += rule.apply(q, content)
		}
	}
	return total
}

// bareNumber returns the first number in text that is not a quantity such
// as "250kg" or "90°"
func bareNumber(text string) string {
	for _, loc := range numberPattern.FindAllStringIndex(text, -1) {
		rest := strings.TrimLeft(text[loc[1]:], " ")
		quantity := false
		for _, u := range quantityUnits {
			if strings.HasPrefix(rest, u) {
				quantity = true
				break
			}
		}
		if !quantity {
			return text[loc[0]:loc[1]]
		}
	}
	return ""
}

func parseQuantity(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

// maxKg returns the largest "<n> kg" value in content
func maxKg(content string) (float64, bool) {
	var (
		max   float64
		found bool
	)
	for _, m := range kgPattern.FindAllStringSubmatch(content, -1) {
		v, err := parseQuantity(m[1])
		if err != nil {
			continue
		}
		if !found || v > max {
			max, found = v, true
		}
	}
	return max, found
}

func thresholdBonus(q *query, content string) float64 {
	if !q.hasLimit {
		return 0
	}
	kg, ok := maxKg(content)
	switch {
	case !ok:
		return 0
	case kg >= q.threshold:
		return 0.45
	default:
		return -0.15
	}
}

// modelNumberBonus applies the best matching tier only
func modelNumberBonus(q *query, content string) float64 {
	switch {
	case q.modelPattern.MatchString(content):
		return 0.25
	case q.typePattern.MatchString(content):
		return 0.20
	case q.isolatedNumber.MatchString(content):
		return 0.10
	default:
		return -0.05
	}
}

func brandBonus(q *query, content string) float64 {
	var total float64
	for _, b := range q.brands {
		if strings.Contains(content, b) {
			total += 0.10
		}
	}
	return total
}

func when(bonus float64, match func(string) bool) func(*query, string) float64 {
	return func(_ *query, content string) float64 {
		if match(content) {
			return bonus
		}
		return 0
	}
}

func withoutThreshold(bonus float64, match func(string) bool) func(*query, string) float64 {
	return func(q *query, content string) float64 {
		if q.hasLimit || !match(content) {
			return 0
		}
		return bonus
	}
}

func containsAny(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

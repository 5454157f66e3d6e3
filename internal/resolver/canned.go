package resolver

import (
	"context"
	"strings"

	"github.com/xaenox/astro-bot/internal/models"
)

// LifeArea is a topic recognised from keywords in the user's text.
type LifeArea struct {
	Name     string
	Keywords []string
}

// LifeAreas is checked in order; the first area with a matching keyword wins.
var LifeAreas = []LifeArea{
	{Name: "career", Keywords: []string{"career", "job", "work", "promotion", "boss", "office"}},
	{Name: "relationship", Keywords: []string{"relationship", "marriage", "married", "partner", "love", "divorce"}},
	{Name: "health", Keywords: []string{"health", "illness", "sick", "disease", "surgery"}},
	{Name: "finance", Keywords: []string{"money", "business", "finance", "debt", "loan", "investment"}},
}

// DetectLifeArea returns the first life area whose keywords occur in text,
// ignoring case.
func DetectLifeArea(text string) (string, bool) {
	text = strings.ToLower(text)
	for _, area := range LifeAreas {
		for _, keyword := range area.Keywords {
			if strings.Contains(text, keyword) {
				return area.Name, true
			}
		}
	}
	return "", false
}

// Rule is one step of the fallback ladder: when Match accepts the turn, Text
// becomes the reply.
type Rule struct {
	Name  string
	Match func(Turn) bool
	Text  func(Turn) string
}

func fixed(text string) func(Turn) string {
	return func(Turn) string { return text }
}

func firstMessageAbout(area string) func(Turn) bool {
	return func(t Turn) bool {
		if t.QuestionCount != 0 {
			return false
		}
		found, ok := DetectLifeArea(t.Input)
		return ok && found == area
	}
}

func countIs(n int) func(Turn) bool {
	return func(t Turn) bool { return t.QuestionCount == n }
}

// DefaultRules is the canned ladder: keyword templates for the opening
// message, then follow-up questions by question count, then the report.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "career", Match: firstMessageAbout("career"), Text: fixed(careerTemplate)},
		{Name: "relationship", Match: firstMessageAbout("relationship"), Text: fixed(relationshipTemplate)},
		{Name: "health", Match: firstMessageAbout("health"), Text: fixed(healthTemplate)},
		{Name: "finance", Match: firstMessageAbout("finance"), Text: fixed(financeTemplate)},
		{Name: "generic", Match: countIs(0), Text: fixed(genericTemplate)},
		{Name: "follow-up-1", Match: countIs(1), Text: fixed(followUpBirthTemplate)},
		{Name: "follow-up-2", Match: countIs(2), Text: fixed(followUpTimelineTemplate)},
		{Name: "follow-up-3", Match: countIs(3), Text: fixed(followUpExperienceTemplate)},
		{Name: "planetary-report", Match: func(t Turn) bool { return t.QuestionCount >= 4 }, Text: planetaryReport},
		{Name: "acknowledge", Match: func(Turn) bool { return true }, Text: fixed(acknowledgeTemplate)},
	}
}

// CannedResolver answers from an ordered list of rules. It never calls out and
// never fails.
type CannedResolver struct {
	rules []Rule
}

func NewCannedResolver(rules ...Rule) *CannedResolver {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &CannedResolver{rules: rules}
}

func (c *CannedResolver) Resolve(_ context.Context, turn Turn) (Reply, error) {
	return c.Match(turn), nil
}

// Match evaluates the rules in order and returns the first non-empty answer.
func (c *CannedResolver) Match(turn Turn) Reply {
	for _, rule := range c.rules {
		if !rule.Match(turn) {
			continue
		}
		if text := rule.Text(turn); strings.TrimSpace(text) != "" {
			return Reply{Text: text, Source: SourceFallback, Rule: rule.Name}
		}
	}
	return Reply{Text: acknowledgeTemplate, Source: SourceFallback, Rule: "acknowledge"}
}

// Report answers an intake form with the canned planetary report.
func (c *CannedResolver) Report(_ context.Context, form models.IntakeForm) (Reply, error) {
	profile := form.Profile()
	if area, ok := DetectLifeArea(form.Problem); ok {
		profile.LifeArea = area
	}
	return Reply{Text: planetaryReportFor(profile), Source: SourceFallback, Rule: "planetary-report"}, nil
}

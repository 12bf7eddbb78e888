package rules

import (
	"strings"

	"maildesk/models"
	"maildesk/utils"
)

// Outcome is the merged automation decision for one message after running
// every enabled rule against it.
type Outcome struct {
	SkipAutomation bool             `json:"skip_automation"`
	Priority       *models.Priority `json:"priority,omitempty"`
	DelayDays      *int             `json:"delay,omitempty"`
	AutoApprove    bool             `json:"auto_approve"`
	MatchedRules   []string         `json:"matched_rules,omitempty"`
}

// Evaluate reports whether a rule matches a message. Every present condition
// must match; a rule with no conditions is a catch-all and matches anything.
// Enabled is not consulted here, that is EvaluateAll's job.
func Evaluate(rule models.FilterRule, email *models.ReceivedEmail) bool {
	cond := rule.Conditions
	if cond.Sender != nil && !matchString(cond.Sender, email.FromEmail) {
		return false
	}
	if cond.Subject != nil && !matchString(cond.Subject, email.Subject) {
		return false
	}
	if cond.Domain != nil && !matchDomain(cond.Domain, email.SenderDomain()) {
		return false
	}
	if cond.Keywords != nil && !matchKeywords(cond.Keywords, email) {
		return false
	}
	if cond.HasContact != nil && *cond.HasContact != email.HasContact() {
		return false
	}
	return true
}

// EvaluateAll runs the enabled rules in priority-descending order and merges
// their actions. skip_automation and auto_approve are OR'd across matches;
// for the scalar fields (priority, delay) the first matching rule that sets
// the field wins, which with the descending order means the highest-priority
// matching rule.
func EvaluateAll(list []models.FilterRule, email *models.ReceivedEmail) Outcome {
	var out Outcome
	for _, rule := range SortForEvaluation(list) {
		if !rule.Enabled {
			continue
		}
		if !Evaluate(rule, email) {
			continue
		}
		out.MatchedRules = append(out.MatchedRules, rule.ID)
		a := rule.Actions
		if a.SkipAutomation != nil && *a.SkipAutomation {
			out.SkipAutomation = true
		}
		if a.AutoApprove != nil && *a.AutoApprove {
			out.AutoApprove = true
		}
		if a.SetPriority != nil && out.Priority == nil {
			p := *a.SetPriority
			out.Priority = &p
		}
		if a.CustomDelay != nil && out.DelayDays == nil {
			d := *a.CustomDelay
			out.DelayDays = &d
		}
	}
	return out
}

func matchString(m *models.StringMatch, value string) bool {
	if m.Type == models.MatchRegex {
		re, err := compileMatchRegex(m)
		if err != nil {
			// A malformed pattern never crashes evaluation; the
			// condition simply fails and the error is reported.
			utils.Log.Warn("filter rule regex %q failed to compile: %v", m.Value, err)
			return false
		}
		return re.MatchString(value)
	}

	want := m.Value
	if !m.CaseSensitive {
		want = strings.ToLower(want)
		value = strings.ToLower(value)
	}

	switch m.Type {
	case models.MatchContains:
		return strings.Contains(value, want)
	case models.MatchEquals:
		return value == want
	case models.MatchStartsWith:
		return strings.HasPrefix(value, want)
	case models.MatchEndsWith:
		return strings.HasSuffix(value, want)
	default:
		utils.Log.Warn("unknown string match type %q", m.Type)
		return false
	}
}

func matchDomain(m *models.DomainMatch, domain string) bool {
	inList := false
	for _, candidate := range m.Value {
		if strings.EqualFold(candidate, domain) {
			inList = true
			break
		}
	}

	switch m.Type {
	case models.DomainIs, models.DomainInList:
		return inList
	case models.DomainIsNot, models.DomainNotInList:
		return !inList
	default:
		utils.Log.Warn("unknown domain match type %q", m.Type)
		return false
	}
}

func matchKeywords(m *models.KeywordMatch, email *models.ReceivedEmail) bool {
	haystack := strings.ToLower(email.Subject + "\n" + email.BodyText())

	found := 0
	for _, kw := range m.Value {
		if kw = strings.TrimSpace(kw); kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			found++
		}
	}

	switch m.Type {
	case models.KeywordsContainsAny:
		return found > 0
	case models.KeywordsContainsAll:
		return found == countNonEmpty(m.Value)
	case models.KeywordsContainsNone:
		return found == 0
	default:
		utils.Log.Warn("unknown keyword match type %q", m.Type)
		return false
	}
}

func countNonEmpty(values []string) int {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

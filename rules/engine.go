package rules

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"maildesk/models"

	"github.com/google/uuid"
)

// DraftIDPrefix marks client-side ids that have not been persisted yet.
// The store swaps them for server-assigned ids on save.
const DraftIDPrefix = "draft-"

const (
	defaultPriority = 5
	minPriority     = 1
	maxPriority     = 10
)

var (
	// ErrNameRequired is returned when a rule has an empty or
	// whitespace-only name.
	ErrNameRequired = errors.New("rule name is required")
)

// ValidationError describes a rule that must not be persisted.
type ValidationError struct {
	RuleID string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rule %s: %s", e.RuleID, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewDraftRule constructs a fresh in-memory rule. Pure construction: the
// caller decides when to add it to the working list.
func NewDraftRule() models.FilterRule {
	return models.FilterRule{
		ID:        DraftIDPrefix + uuid.New().String(),
		Enabled:   true,
		Priority:  defaultPriority,
		CreatedAt: time.Now(),
	}
}

// IsDraftID reports whether an id belongs to the draft identity space.
func IsDraftID(id string) bool {
	return strings.HasPrefix(id, DraftIDPrefix)
}

// WithSender returns a copy of the rule with the sender condition replaced.
func WithSender(rule models.FilterRule, m models.StringMatch) models.FilterRule {
	rule.Conditions.Sender = &m
	return touch(rule)
}

// WithoutSender returns a copy of the rule with the sender condition cleared.
func WithoutSender(rule models.FilterRule) models.FilterRule {
	rule.Conditions.Sender = nil
	return touch(rule)
}

// WithSubject returns a copy of the rule with the subject condition replaced.
func WithSubject(rule models.FilterRule, m models.StringMatch) models.FilterRule {
	rule.Conditions.Subject = &m
	return touch(rule)
}

// WithoutSubject returns a copy of the rule with the subject condition cleared.
func WithoutSubject(rule models.FilterRule) models.FilterRule {
	rule.Conditions.Subject = nil
	return touch(rule)
}

// WithDomain returns a copy of the rule with the domain condition replaced.
func WithDomain(rule models.FilterRule, m models.DomainMatch) models.FilterRule {
	rule.Conditions.Domain = &m
	return touch(rule)
}

// WithoutDomain returns a copy of the rule with the domain condition cleared.
func WithoutDomain(rule models.FilterRule) models.FilterRule {
	rule.Conditions.Domain = nil
	return touch(rule)
}

// WithKeywords returns a copy of the rule with the keywords condition replaced.
func WithKeywords(rule models.FilterRule, m models.KeywordMatch) models.FilterRule {
	rule.Conditions.Keywords = &m
	return touch(rule)
}

// WithoutKeywords returns a copy of the rule with the keywords condition cleared.
func WithoutKeywords(rule models.FilterRule) models.FilterRule {
	rule.Conditions.Keywords = nil
	return touch(rule)
}

// WithHasContact returns a copy of the rule with the has_contact condition set.
func WithHasContact(rule models.FilterRule, want bool) models.FilterRule {
	rule.Conditions.HasContact = &want
	return touch(rule)
}

// WithoutHasContact returns a copy of the rule with the has_contact condition cleared.
func WithoutHasContact(rule models.FilterRule) models.FilterRule {
	rule.Conditions.HasContact = nil
	return touch(rule)
}

// WithActions returns a copy of the rule with the whole action set replaced.
func WithActions(rule models.FilterRule, actions models.FilterAction) models.FilterRule {
	rule.Actions = actions
	return touch(rule)
}

// WithoutActions returns a copy of the rule with all actions cleared.
func WithoutActions(rule models.FilterRule) models.FilterRule {
	rule.Actions = models.FilterAction{}
	return touch(rule)
}

// ToggleEnabled returns a copy of the rule with enabled flipped.
func ToggleEnabled(rule models.FilterRule) models.FilterRule {
	rule.Enabled = !rule.Enabled
	return touch(rule)
}

func touch(rule models.FilterRule) models.FilterRule {
	rule.UpdatedAt = time.Now()
	return rule
}

// Validate refuses rules that must not be persisted: a missing name, a
// priority outside 1-10, or a string predicate whose regex does not compile.
func Validate(rule models.FilterRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return &ValidationError{RuleID: rule.ID, Reason: "name_required", Err: ErrNameRequired}
	}
	if rule.Priority < minPriority || rule.Priority > maxPriority {
		return &ValidationError{
			RuleID: rule.ID,
			Reason: fmt.Sprintf("priority must be between %d and %d", minPriority, maxPriority),
		}
	}
	for field, m := range map[string]*models.StringMatch{
		"sender":  rule.Conditions.Sender,
		"subject": rule.Conditions.Subject,
	} {
		if m == nil || m.Type != models.MatchRegex {
			continue
		}
		if _, err := compileMatchRegex(m); err != nil {
			return &ValidationError{
				RuleID: rule.ID,
				Reason: fmt.Sprintf("invalid %s regex: %v", field, err),
				Err:    err,
			}
		}
	}
	if rule.Actions.CustomDelay != nil && *rule.Actions.CustomDelay <= 0 {
		return &ValidationError{RuleID: rule.ID, Reason: "custom_delay must be positive"}
	}
	return nil
}

// ValidateAll validates a whole working copy; any failure rejects the set
// since persistence is all-or-nothing.
func ValidateAll(list []models.FilterRule) error {
	for _, rule := range list {
		if err := Validate(rule); err != nil {
			return err
		}
	}
	return nil
}

// SortForEvaluation orders rules by priority descending. The sort is stable
// so rules with equal priority keep their insertion order; evaluation order
// decides which rule's scalar actions win, so it has to be reproducible.
func SortForEvaluation(list []models.FilterRule) []models.FilterRule {
	sorted := make([]models.FilterRule, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}

func compileMatchRegex(m *models.StringMatch) (*regexp.Regexp, error) {
	pattern := m.Value
	if !m.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

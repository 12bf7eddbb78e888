package models

import (
	"encoding/json"
	"strings"
	"time"
)

// StringMatchType is the comparison mode for sender/subject predicates.
type StringMatchType string

const (
	MatchContains   StringMatchType = "contains"
	MatchEquals     StringMatchType = "equals"
	MatchStartsWith StringMatchType = "starts_with"
	MatchEndsWith   StringMatchType = "ends_with"
	MatchRegex      StringMatchType = "regex"
)

// DomainMatchType is the comparison mode for the domain predicate.
type DomainMatchType string

const (
	DomainIs        DomainMatchType = "is"
	DomainIsNot     DomainMatchType = "is_not"
	DomainInList    DomainMatchType = "in_list"
	DomainNotInList DomainMatchType = "not_in_list"
)

// KeywordMatchType is the combining mode for the keywords predicate.
type KeywordMatchType string

const (
	KeywordsContainsAny  KeywordMatchType = "contains_any"
	KeywordsContainsAll  KeywordMatchType = "contains_all"
	KeywordsContainsNone KeywordMatchType = "contains_none"
)

// Priority is the automation priority a rule can assign to a message.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// StringMatch is a fully-populated string predicate. A nil *StringMatch on
// FilterCondition means the predicate is not active.
type StringMatch struct {
	Type          StringMatchType `json:"type"`
	Value         string          `json:"value"`
	CaseSensitive bool            `json:"case_sensitive"`
}

// DomainList accepts either a single string or a list of strings on the wire;
// the authoring UI edits list forms as a comma-separated string.
type DomainList []string

// UnmarshalJSON decodes "a.com", ["a.com","b.com"], or "a.com, b.com".
func (d *DomainList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*d = splitDomains(single)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	out := make(DomainList, 0, len(list))
	for _, v := range list {
		out = append(out, splitDomains(v)...)
	}
	*d = out
	return nil
}

func splitDomains(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DomainMatch compares the part of from_email after "@".
type DomainMatch struct {
	Type  DomainMatchType `json:"type"`
	Value DomainList      `json:"value"`
}

// KeywordMatch scans subject and body text for each keyword.
type KeywordMatch struct {
	Type  KeywordMatchType `json:"type"`
	Value []string         `json:"value"`
}

// FilterCondition is the condition set of a rule. Each field is either nil
// (predicate inactive, the key is absent from JSON) or fully populated; a
// partially-filled predicate is not a valid state.
type FilterCondition struct {
	Sender     *StringMatch  `json:"sender,omitempty"`
	Domain     *DomainMatch  `json:"domain,omitempty"`
	Subject    *StringMatch  `json:"subject,omitempty"`
	Keywords   *KeywordMatch `json:"keywords,omitempty"`
	HasContact *bool         `json:"has_contact,omitempty"`
}

// IsEmpty reports whether no predicate is active.
func (c FilterCondition) IsEmpty() bool {
	return c.Sender == nil && c.Domain == nil && c.Subject == nil &&
		c.Keywords == nil && c.HasContact == nil
}

// FilterAction is the effect set of a rule. Absent fields mean no effect.
type FilterAction struct {
	SkipAutomation *bool     `json:"skip_automation,omitempty"`
	SetPriority    *Priority `json:"set_priority,omitempty"`
	CustomDelay    *int      `json:"custom_delay,omitempty"`
	AutoApprove    *bool     `json:"auto_approve,omitempty"`
}

// IsEmpty reports whether no action is set.
func (a FilterAction) IsEmpty() bool {
	return a.SkipAutomation == nil && a.SetPriority == nil &&
		a.CustomDelay == nil && a.AutoApprove == nil
}

// FilterRule is a named, prioritized predicate+effect pair for incoming mail.
// Priority runs 1-10, higher evaluated first. Disabled rules are retained but
// never match.
type FilterRule struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Enabled     bool            `json:"enabled"`
	Priority    int             `json:"priority"`
	Conditions  FilterCondition `json:"conditions"`
	Actions     FilterAction    `json:"actions"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

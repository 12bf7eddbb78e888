package rules

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"maildesk/models"
)

func TestNewDraftRule(t *testing.T) {
	rule := NewDraftRule()

	if !rule.Enabled {
		t.Error("draft rule should be enabled")
	}
	if rule.Priority != 5 {
		t.Errorf("draft priority = %d, want 5", rule.Priority)
	}
	if !IsDraftID(rule.ID) {
		t.Errorf("draft id %q should carry the draft prefix", rule.ID)
	}
	if !rule.Conditions.IsEmpty() {
		t.Error("draft rule should have no conditions")
	}
	if !rule.Actions.IsEmpty() {
		t.Error("draft rule should have no actions")
	}

	other := NewDraftRule()
	if rule.ID == other.ID {
		t.Error("two drafts should have distinct ids")
	}
}

func TestConditionRemovalClearsKey(t *testing.T) {
	rule := NewDraftRule()
	rule.Name = "test"
	rule = WithSender(rule, models.StringMatch{Type: models.MatchEquals, Value: "a@b.com"})

	if rule.Conditions.Sender == nil {
		t.Fatal("sender condition should be set")
	}

	rule = WithoutSender(rule)
	if rule.Conditions.Sender != nil {
		t.Fatal("sender condition should be cleared")
	}

	// Presence of the key is the activation signal, so after removal it
	// must not appear on the wire at all.
	data, err := json.Marshal(rule.Conditions)
	if err != nil {
		t.Fatalf("marshal conditions: %v", err)
	}
	if strings.Contains(string(data), "sender") {
		t.Errorf("serialized conditions still contain the sender key: %s", data)
	}
}

func TestMutatorsCopyOnWrite(t *testing.T) {
	original := NewDraftRule()
	original.Name = "original"

	modified := WithSubject(original, models.StringMatch{Type: models.MatchContains, Value: "invoice"})
	if original.Conditions.Subject != nil {
		t.Error("mutator modified its input rule")
	}
	if modified.Conditions.Subject == nil {
		t.Error("mutator did not set the condition on the returned rule")
	}

	toggled := ToggleEnabled(original)
	if !original.Enabled || toggled.Enabled {
		t.Error("ToggleEnabled should flip only the returned copy")
	}
}

func TestValidate(t *testing.T) {
	delay := -3
	tests := []struct {
		name    string
		rule    models.FilterRule
		wantErr bool
		reason  string
	}{
		{
			name: "valid rule",
			rule: models.FilterRule{ID: "r1", Name: "VIP", Priority: 5},
		},
		{
			name:    "empty name",
			rule:    models.FilterRule{ID: "r2", Priority: 5},
			wantErr: true,
			reason:  "name_required",
		},
		{
			name:    "whitespace name",
			rule:    models.FilterRule{ID: "r3", Name: "   ", Priority: 5},
			wantErr: true,
			reason:  "name_required",
		},
		{
			name:    "priority too high",
			rule:    models.FilterRule{ID: "r4", Name: "x", Priority: 11},
			wantErr: true,
		},
		{
			name: "malformed regex",
			rule: models.FilterRule{
				ID: "r5", Name: "x", Priority: 5,
				Conditions: models.FilterCondition{
					Sender: &models.StringMatch{Type: models.MatchRegex, Value: "([unclosed"},
				},
			},
			wantErr: true,
		},
		{
			name: "negative delay",
			rule: models.FilterRule{
				ID: "r6", Name: "x", Priority: 5,
				Actions: models.FilterAction{CustomDelay: &delay},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rule)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.reason == "" {
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if vErr.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", vErr.Reason, tt.reason)
			}
		})
	}
}

func TestValidateNameRequiredUnwraps(t *testing.T) {
	err := Validate(models.FilterRule{ID: "r", Priority: 5})
	if !errors.Is(err, ErrNameRequired) {
		t.Errorf("empty name error should wrap ErrNameRequired, got %v", err)
	}
}

func TestSortForEvaluationStable(t *testing.T) {
	list := []models.FilterRule{
		{ID: "a", Priority: 3},
		{ID: "b", Priority: 7},
		{ID: "c", Priority: 7},
		{ID: "d", Priority: 1},
	}

	sorted := SortForEvaluation(list)

	want := []string{"b", "c", "a", "d"}
	for i, id := range want {
		if sorted[i].ID != id {
			t.Fatalf("sorted[%d] = %s, want %s (full order %v)", i, sorted[i].ID, id, ids(sorted))
		}
	}

	// Input order must be untouched.
	if list[0].ID != "a" {
		t.Error("SortForEvaluation mutated its input")
	}
}

func ids(list []models.FilterRule) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return out
}

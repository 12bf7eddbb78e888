package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"maildesk/models"
	"maildesk/rules"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	rulesBucket = "filter_rules"
	rulesKey    = "ruleset"
)

// RuleStore persists the authored rule set using BoltDB. The whole list
// lives under one key and is written in one transaction, so the bulk save
// is all-or-nothing: no rule is ever partially persisted.
type RuleStore struct {
	db *bbolt.DB
}

// NewRuleStore opens (or creates) the rule database under dataDir.
func NewRuleStore(dataDir string) (*RuleStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "maildesk.db")
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(rulesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %v", err)
	}

	return &RuleStore{db: db}, nil
}

// Close closes the database connection
func (s *RuleStore) Close() error {
	return s.db.Close()
}

// SaveRuleSet validates and persists the entire working copy atomically.
// Draft ids are exchanged for server-assigned ids; the persisted list is
// returned so callers can adopt the new identities.
func (s *RuleStore) SaveRuleSet(list []models.FilterRule) ([]models.FilterRule, error) {
	if err := rules.ValidateAll(list); err != nil {
		return nil, err
	}

	saved := make([]models.FilterRule, len(list))
	now := time.Now()
	for i, rule := range list {
		if rules.IsDraftID(rule.ID) || rule.ID == "" {
			rule.ID = uuid.New().String()
			rule.CreatedAt = now
		}
		rule.UpdatedAt = now
		saved[i] = rule
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(saved)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(rulesBucket)).Put([]byte(rulesKey), data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save rule set: %v", err)
	}

	return saved, nil
}

// LoadRuleSet returns the persisted rule set, sorted for display (priority
// descending, stable). An empty store yields an empty list.
func (s *RuleStore) LoadRuleSet() ([]models.FilterRule, error) {
	var list []models.FilterRule

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(rulesBucket)).Get([]byte(rulesKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &list)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set: %v", err)
	}

	return rules.SortForEvaluation(list), nil
}

// Package mailsync is the provider side of the mailbox sync contract: it
// pulls unseen messages from an IMAP account, converts them to the backend's
// received-email shape and pushes them upstream, reporting how many synced
// and which ones failed.
package mailsync

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"maildesk/config"
	"maildesk/models"
	"maildesk/utils"
)

// Sink receives converted messages. In production this is the backend
// client; tests substitute a recorder.
type Sink interface {
	CreateEmail(ctx context.Context, email *models.ReceivedEmail) error
}

// Syncer drains unseen mail from one IMAP folder into the sink.
type Syncer struct {
	cfg  config.IMAPConfig
	sink Sink
	log  *utils.Logger
}

// NewSyncer creates a syncer for the configured IMAP account.
func NewSyncer(cfg config.IMAPConfig, sink Sink) *Syncer {
	return &Syncer{
		cfg:  cfg,
		sink: sink,
		log:  utils.Log.WithField("component", "mailsync"),
	}
}

// Enabled reports whether an IMAP account is configured at all; without one
// the sync endpoint delegates to the backend's own sync service.
func (s *Syncer) Enabled() bool {
	return s.cfg.Server != ""
}

// Run performs one sync pass. Per-message failures are collected rather
// than aborting the run; the result mirrors the syncInbox contract.
func (s *Syncer) Run(ctx context.Context) (*models.SyncResult, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port), nil)
	if err != nil {
		return nil, fmt.Errorf("connection error: %v", err)
	}
	defer c.Logout()

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("login error: %v", err)
	}

	if _, err := c.Select(s.cfg.Folder, false); err != nil {
		return nil, fmt.Errorf("error selecting folder %s: %v", s.cfg.Folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search error: %v", err)
	}
	if len(ids) == 0 {
		return &models.SyncResult{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	result := &models.SyncResult{}
	for msg := range messages {
		email, err := convertMessage(msg, section)
		if err != nil {
			s.log.Warn("error processing message %d: %v", msg.Uid, err)
			result.Errors = append(result.Errors, fmt.Sprintf("message %d: %v", msg.Uid, err))
			continue
		}

		if err := s.sink.CreateEmail(ctx, email); err != nil {
			s.log.Warn("error pushing message %d upstream: %v", msg.Uid, err)
			result.Errors = append(result.Errors, fmt.Sprintf("message %d: %v", msg.Uid, err))
			continue
		}
		result.Synced++
	}

	if err := <-done; err != nil {
		return result, fmt.Errorf("error during fetch: %v", err)
	}

	s.log.Info("sync pass complete: %d synced, %d errors", result.Synced, len(result.Errors))
	return result, nil
}

// Package inbox holds the local mirror of the remote mailbox: a paginated,
// filtered window of messages whose read/starred/archived flags are mutated
// optimistically while the authoritative call runs against the backend.
//
// The service runs one Store per process: this is a single-user desk, so
// view, filter and selection state is deliberately shared by every HTTP
// client rather than scoped per session.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"maildesk/mailapi"
	"maildesk/models"
	"maildesk/utils"
)

// Mode controls reconciliation after a failed remote mutation behind an
// optimistic local change that was applied for instant feedback.
type Mode string

const (
	// ModeStrict reverts the optimistic change and surfaces the error.
	ModeStrict Mode = "strict"
	// ModeForgiving keeps the optimistic change for low-stakes background
	// mutations and only logs; the flag is retried naturally on next open.
	ModeForgiving Mode = "forgiving"
)

var (
	// ErrActionInFlight is returned when a second mutation targets a
	// message whose previous mutation has not resolved yet. Guards
	// against double-click state flapping.
	ErrActionInFlight = errors.New("action already in flight for this email")
	// ErrNotLoaded is returned when a mutation targets an id that is not
	// in the current window.
	ErrNotLoaded = errors.New("email not in current view")
)

// MailboxAPI is the slice of the backend contract the store needs.
type MailboxAPI interface {
	FetchInbox(ctx context.Context, f mailapi.InboxFilters) (*models.InboxPage, error)
	MarkRead(ctx context.Context, id int64) error
	MarkUnread(ctx context.Context, id int64) error
	ToggleStar(ctx context.Context, id int64) error
	Archive(ctx context.Context, id int64) error
	Unarchive(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	Sync(ctx context.Context) (*models.SyncResult, error)
}

// Store is the inbox state container. All reads and writes go through its
// methods; a mutex serializes writers so interleaved optimistic mutations
// cannot lose updates when the store is shared across request goroutines.
type Store struct {
	api      MailboxAPI
	log      *utils.Logger
	mode     Mode
	pageSize int
	cache    *utils.MemoryCache
	cacheTTL time.Duration

	mu          sync.Mutex
	emails      []models.ReceivedEmail
	selected    *models.ReceivedEmail
	page        int
	totalPages  int
	unreadCount int
	searchQuery string
	unreadOnly  bool
	starredOnly bool
	archived    bool
	activeView  View
	inflight    map[int64]bool
}

// NewStore creates an inbox store in the given reconcile mode. A nil cache
// disables page caching.
func NewStore(api MailboxAPI, mode Mode, pageSize int, cache *utils.MemoryCache, cacheTTL time.Duration) *Store {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Store{
		api:        api,
		log:        utils.Log.WithField("component", "inbox"),
		mode:       mode,
		pageSize:   pageSize,
		cache:      cache,
		cacheTTL:   cacheTTL,
		page:       1,
		totalPages: 1,
		activeView: ViewInbox,
		inflight:   make(map[int64]bool),
	}
}

// filters derives the backend query tuple from the current state.
func (s *Store) filters() mailapi.InboxFilters {
	f := mailapi.InboxFilters{
		Page:     s.page,
		PageSize: s.pageSize,
		Search:   s.searchQuery,
		View:     string(s.activeView),
	}
	archived := s.archived
	f.IsArchived = &archived
	if s.unreadOnly {
		isRead := false
		f.IsRead = &isRead
	}
	if s.starredOnly {
		isStarred := true
		f.IsStarred = &isStarred
	}
	return f
}

func (s *Store) cacheKey() string {
	return fmt.Sprintf("inbox:%s:%d:%t:%t:%t:%s",
		s.activeView, s.page, s.archived, s.unreadOnly, s.starredOnly, s.searchQuery)
}

func (s *Store) invalidate() {
	if s.cache != nil {
		s.cache.DeletePrefix("inbox:")
	}
}

// Load fetches the current window from the backend and replaces the local
// mirror. Placeholder views short-circuit to an empty result set.
func (s *Store) Load(ctx context.Context) (*models.InboxPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeView.placeholder() {
		s.emails = nil
		s.totalPages = 1
		return models.NewInboxPage(nil, s.page, s.pageSize, 1, s.unreadCount), nil
	}

	key := s.cacheKey()
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			page := cached.(*models.InboxPage)
			s.adopt(page)
			return page, nil
		}
	}

	page, err := s.api.FetchInbox(ctx, s.filters())
	if err != nil {
		return nil, err
	}
	s.adopt(page)
	if s.cache != nil {
		s.cache.Set(key, page, s.cacheTTL)
	}
	return page, nil
}

// adopt copies the page into the live mirror. The copy matters: the page is
// handed to handlers (and the cache) without the store's lock, so the live
// list the mutations write to must not share its backing array.
func (s *Store) adopt(page *models.InboxPage) {
	s.emails = make([]models.ReceivedEmail, len(page.Emails))
	copy(s.emails, page.Emails)
	s.totalPages = page.TotalPages
	s.unreadCount = page.UnreadCount
}

// SetView switches folders: selection cleared, page reset to 1, ad-hoc
// filters forced to the view's canonical defaults.
func (s *Store) SetView(v View) error {
	if !v.Valid() {
		return utils.BadRequestError(fmt.Sprintf("unknown view %q", v), nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeView = v
	s.selected = nil
	s.page = 1
	s.unreadOnly, s.starredOnly, s.archived = v.defaults()
	return nil
}

// SetSearch updates the search query and resets to page 1 so the next load
// cannot request an out-of-range page.
func (s *Store) SetSearch(query string) {
	s.mu.Lock()
	s.searchQuery = query
	s.page = 1
	s.mu.Unlock()
}

// SetUnreadOnly toggles the unread filter, resetting to page 1.
func (s *Store) SetUnreadOnly(on bool) {
	s.mu.Lock()
	s.unreadOnly = on
	s.page = 1
	s.mu.Unlock()
}

// SetStarredOnly toggles the starred filter, resetting to page 1.
func (s *Store) SetStarredOnly(on bool) {
	s.mu.Lock()
	s.starredOnly = on
	s.page = 1
	s.mu.Unlock()
}

// SetArchived toggles the archived filter, resetting to page 1.
func (s *Store) SetArchived(on bool) {
	s.mu.Lock()
	s.archived = on
	s.page = 1
	s.mu.Unlock()
}

// SetPage moves to a 1-indexed page. Out-of-range requests are a no-op.
func (s *Store) SetPage(page int) {
	s.mu.Lock()
	if page >= 1 && page <= s.totalPages {
		s.page = page
	}
	s.mu.Unlock()
}

// Open selects a message and, when unread, optimistically marks it read:
// the local flag flips and the unread count drops before the backend call
// resolves. A failed mark-read is incidental: forgiving mode keeps the
// optimistic flag and logs, strict mode reverts.
func (s *Store) Open(ctx context.Context, id int64) (*models.ReceivedEmail, error) {
	s.mu.Lock()
	email := s.find(id)
	if email == nil {
		s.mu.Unlock()
		return nil, utils.NotFoundError("email not found in current view", ErrNotLoaded)
	}
	s.selected = email
	if email.IsRead {
		snapshot := *email
		s.mu.Unlock()
		return &snapshot, nil
	}
	s.mu.Unlock()

	// Unread, so a mark-read mutation follows; it takes the same per-message
	// guard as the user-initiated mutations.
	if !s.begin(id) {
		return nil, ErrActionInFlight
	}
	defer s.end(id)

	s.mu.Lock()
	email = s.find(id)
	if email == nil {
		s.mu.Unlock()
		return nil, utils.NotFoundError("email not found in current view", ErrNotLoaded)
	}
	if email.IsRead {
		// Another caller won the race; nothing left to do.
		snapshot := *email
		s.mu.Unlock()
		return &snapshot, nil
	}
	email.IsRead = true
	s.decUnread()
	s.invalidate()
	snapshot := *email
	s.mu.Unlock()

	if err := s.api.MarkRead(ctx, id); err != nil {
		if s.mode == ModeStrict {
			s.mu.Lock()
			if e := s.find(id); e != nil {
				e.IsRead = false
				s.unreadCount++
			}
			if s.selected != nil && s.selected.ID == id {
				s.selected.IsRead = false
			}
			s.mu.Unlock()
			return nil, err
		}
		s.log.Warn("mark-read for email %d failed, keeping optimistic flag: %v", id, err)
	}
	return &snapshot, nil
}

// ToggleRead flips the read flag. User-initiated and visible, so a remote
// failure always reverts the optimistic change and surfaces the error.
func (s *Store) ToggleRead(ctx context.Context, id int64) error {
	if !s.begin(id) {
		return ErrActionInFlight
	}
	defer s.end(id)

	s.mu.Lock()
	email := s.find(id)
	if email == nil {
		s.mu.Unlock()
		return utils.NotFoundError("email not found in current view", ErrNotLoaded)
	}
	markingRead := !email.IsRead
	s.applyRead(email, markingRead)
	s.invalidate()
	s.mu.Unlock()

	var err error
	if markingRead {
		err = s.api.MarkRead(ctx, id)
	} else {
		err = s.api.MarkUnread(ctx, id)
	}
	if err != nil {
		s.mu.Lock()
		if e := s.find(id); e != nil {
			s.applyRead(e, !markingRead)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// applyRead flips the flag and adjusts the unread count, clamping at zero.
// Caller holds the lock.
func (s *Store) applyRead(email *models.ReceivedEmail, read bool) {
	if email.IsRead == read {
		return
	}
	email.IsRead = read
	if read {
		s.decUnread()
	} else {
		s.unreadCount++
	}
	if s.selected != nil && s.selected.ID == email.ID {
		s.selected.IsRead = read
	}
}

func (s *Store) decUnread() {
	if s.unreadCount > 0 {
		s.unreadCount--
	}
}

// ToggleStar flips the starred flag on the list entry and, when the same
// record is open, on the selected copy too, so the two copies stay in
// sync. Reverted on remote failure.
func (s *Store) ToggleStar(ctx context.Context, id int64) error {
	if !s.begin(id) {
		return ErrActionInFlight
	}
	defer s.end(id)

	s.mu.Lock()
	email := s.find(id)
	if email == nil {
		s.mu.Unlock()
		return utils.NotFoundError("email not found in current view", ErrNotLoaded)
	}
	s.applyStar(email, !email.IsStarred)
	s.invalidate()
	s.mu.Unlock()

	if err := s.api.ToggleStar(ctx, id); err != nil {
		s.mu.Lock()
		if e := s.find(id); e != nil {
			s.applyStar(e, !e.IsStarred)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) applyStar(email *models.ReceivedEmail, starred bool) {
	email.IsStarred = starred
	if s.selected != nil && s.selected.ID == email.ID {
		s.selected.IsStarred = starred
	}
}

// Archive awaits the remote mutation first, then reconciles locally: when
// the current view excludes archived messages the entry leaves the visible
// list (and the selection, if it was selected); otherwise the flag flips in
// place.
func (s *Store) Archive(ctx context.Context, id int64) error {
	return s.setArchived(ctx, id, true)
}

// Unarchive is the inverse of Archive with the same view semantics.
func (s *Store) Unarchive(ctx context.Context, id int64) error {
	return s.setArchived(ctx, id, false)
}

func (s *Store) setArchived(ctx context.Context, id int64, archived bool) error {
	if !s.begin(id) {
		return ErrActionInFlight
	}
	defer s.end(id)

	s.mu.Lock()
	if s.find(id) == nil {
		s.mu.Unlock()
		return utils.NotFoundError("email not found in current view", ErrNotLoaded)
	}
	s.mu.Unlock()

	var err error
	if archived {
		err = s.api.Archive(ctx, id)
	} else {
		err = s.api.Unarchive(ctx, id)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email := s.find(id)
	if email == nil {
		return nil
	}
	email.IsArchived = archived
	// The archived filter admits exactly one of the two states, so the
	// record always leaves the current view after the flip.
	if s.archived != archived {
		s.remove(id)
	}
	s.invalidate()
	return nil
}

// Delete removes a message for good: remote delete first, then local
// removal and selection clear. The destructive-action confirmation happens
// at the API surface before this is called.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if !s.begin(id) {
		return ErrActionInFlight
	}
	defer s.end(id)

	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	if e := s.find(id); e != nil && !e.IsRead {
		s.decUnread()
	}
	s.remove(id)
	s.invalidate()
	s.mu.Unlock()
	return nil
}

// Sync triggers the backend's mailbox sync and reports its result. The
// caller decides whether to reload the window afterwards.
func (s *Store) Sync(ctx context.Context) (*models.SyncResult, error) {
	result, err := s.api.Sync(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.invalidate()
	s.mu.Unlock()
	return result, nil
}

// Selected returns a copy of the currently open message, if any.
func (s *Store) Selected() *models.ReceivedEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	out := *s.selected
	return &out
}

// UnreadCount returns the current unread badge value.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadCount
}

// Page returns the current 1-indexed page.
func (s *Store) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// ActiveView returns the current view.
func (s *Store) ActiveView() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeView
}

// Filters returns the current ad-hoc filter flags.
func (s *Store) Filters() (search string, unreadOnly, starredOnly, archived bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchQuery, s.unreadOnly, s.starredOnly, s.archived
}

// Emails returns a copy of the visible window.
func (s *Store) Emails() []models.ReceivedEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReceivedEmail, len(s.emails))
	copy(out, s.emails)
	return out
}

// find returns a pointer into the live list. Caller holds the lock.
func (s *Store) find(id int64) *models.ReceivedEmail {
	for i := range s.emails {
		if s.emails[i].ID == id {
			return &s.emails[i]
		}
	}
	return nil
}

// remove drops the entry from the visible list and clears the selection
// when it was the selected record. Caller holds the lock.
func (s *Store) remove(id int64) {
	for i := range s.emails {
		if s.emails[i].ID == id {
			s.emails = append(s.emails[:i], s.emails[i+1:]...)
			break
		}
	}
	if s.selected != nil && s.selected.ID == id {
		s.selected = nil
	}
}

// begin marks a per-message mutation as in flight; a false return means one
// is already running.
func (s *Store) begin(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[id] {
		return false
	}
	s.inflight[id] = true
	return true
}

func (s *Store) end(id int64) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"maildesk/mailapi"
	"maildesk/models"
)

// --- Mock mailbox API ---

type mockAPI struct {
	mu          sync.Mutex
	page        *models.InboxPage
	fetchErr    error
	mutationErr error
	lastFilters mailapi.InboxFilters
	calls       []string
	block       chan struct{} // when set, mutations wait here
}

func (m *mockAPI) record(call string) error {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	block := m.block
	err := m.mutationErr
	m.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (m *mockAPI) FetchInbox(_ context.Context, f mailapi.InboxFilters) (*models.InboxPage, error) {
	m.mu.Lock()
	m.lastFilters = f
	m.calls = append(m.calls, "fetch")
	m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.page, nil
}

func (m *mockAPI) MarkRead(_ context.Context, id int64) error   { return m.record("read") }
func (m *mockAPI) MarkUnread(_ context.Context, id int64) error { return m.record("unread") }
func (m *mockAPI) ToggleStar(_ context.Context, id int64) error { return m.record("star") }
func (m *mockAPI) Archive(_ context.Context, id int64) error    { return m.record("archive") }
func (m *mockAPI) Unarchive(_ context.Context, id int64) error  { return m.record("unarchive") }
func (m *mockAPI) Delete(_ context.Context, id int64) error     { return m.record("delete") }

func (m *mockAPI) Sync(_ context.Context) (*models.SyncResult, error) {
	if err := m.record("sync"); err != nil {
		return nil, err
	}
	return &models.SyncResult{Synced: 3}, nil
}

func (m *mockAPI) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

// --- Helpers ---

func testPage(unread int, emails ...models.ReceivedEmail) *models.InboxPage {
	return models.NewInboxPage(emails, 1, 20, 5, unread)
}

func loadedStore(t *testing.T, mode Mode, api *mockAPI) *Store {
	t.Helper()
	s := NewStore(api, mode, 20, nil, 0)
	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("loading store: %v", err)
	}
	return s
}

func email(id int64, read, starred bool) models.ReceivedEmail {
	return models.ReceivedEmail{
		ID:         id,
		FromEmail:  "someone@example.com",
		Subject:    "hello",
		ReceivedAt: time.Now(),
		IsRead:     read,
		IsStarred:  starred,
	}
}

// --- Tests ---

func TestOpenMarksReadOptimistically(t *testing.T) {
	api := &mockAPI{page: testPage(2, email(1, false, false), email(2, false, false))}
	s := loadedStore(t, ModeForgiving, api)

	opened, err := s.Open(context.Background(), 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !opened.IsRead {
		t.Error("opened email should be flagged read immediately")
	}
	if s.UnreadCount() != 1 {
		t.Errorf("unread count = %d, want 1", s.UnreadCount())
	}
	if api.callCount("read") != 1 {
		t.Errorf("mark-read calls = %d, want 1", api.callCount("read"))
	}

	// Opening an already-read email issues no mutation.
	if _, err := s.Open(context.Background(), 1); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if api.callCount("read") != 1 {
		t.Error("opening a read email should not issue another mark-read")
	}
}

func TestOpenForgivingKeepsFlagOnFailure(t *testing.T) {
	api := &mockAPI{
		page:        testPage(1, email(1, false, false)),
		mutationErr: errors.New("backend down"),
	}
	s := loadedStore(t, ModeForgiving, api)

	opened, err := s.Open(context.Background(), 1)
	if err != nil {
		t.Fatalf("forgiving Open should not surface the mark-read failure: %v", err)
	}
	if !opened.IsRead {
		t.Error("optimistic flag should be kept in forgiving mode")
	}
	if s.UnreadCount() != 0 {
		t.Errorf("unread count = %d, want 0", s.UnreadCount())
	}
}

func TestOpenStrictRevertsOnFailure(t *testing.T) {
	api := &mockAPI{
		page:        testPage(1, email(1, false, false)),
		mutationErr: errors.New("backend down"),
	}
	s := loadedStore(t, ModeStrict, api)

	if _, err := s.Open(context.Background(), 1); err == nil {
		t.Fatal("strict Open should surface the mark-read failure")
	}
	emails := s.Emails()
	if emails[0].IsRead {
		t.Error("strict mode should revert the optimistic read flag")
	}
	if s.UnreadCount() != 1 {
		t.Errorf("unread count = %d, want 1 after revert", s.UnreadCount())
	}
}

func TestLoadedPageDetachedFromLiveState(t *testing.T) {
	api := &mockAPI{page: testPage(2, email(1, false, false), email(2, false, false))}
	s := NewStore(api, ModeForgiving, 20, nil, 0)

	page, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.ToggleRead(context.Background(), 1); err != nil {
		t.Fatalf("ToggleRead: %v", err)
	}
	if err := s.ToggleStar(context.Background(), 2); err != nil {
		t.Fatalf("ToggleStar: %v", err)
	}

	// The page handed out by Load is a snapshot; later mutations must not
	// reach into it while a handler is still serializing it.
	if page.Emails[0].IsRead {
		t.Error("mutation wrote through to a previously returned page")
	}
	if page.Emails[1].IsStarred {
		t.Error("star mutation wrote through to a previously returned page")
	}

	if !s.Emails()[0].IsRead || !s.Emails()[1].IsStarred {
		t.Error("live state should carry the mutations")
	}
}

func TestUnreadCountNeverNegative(t *testing.T) {
	// Server meta says zero unread even though a local entry is unread;
	// the decrement on open must clamp, not underflow.
	api := &mockAPI{page: testPage(0, email(1, false, false))}
	s := loadedStore(t, ModeForgiving, api)

	if _, err := s.Open(context.Background(), 1); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.UnreadCount() != 0 {
		t.Errorf("unread count = %d, want 0 (clamped)", s.UnreadCount())
	}
}

func TestToggleReadRoundTrip(t *testing.T) {
	api := &mockAPI{page: testPage(1, email(1, false, false))}
	s := loadedStore(t, ModeForgiving, api)

	if err := s.ToggleRead(context.Background(), 1); err != nil {
		t.Fatalf("ToggleRead: %v", err)
	}
	if s.UnreadCount() != 0 {
		t.Errorf("unread count = %d, want 0", s.UnreadCount())
	}
	if api.callCount("read") != 1 {
		t.Error("expected a mark-read call")
	}

	if err := s.ToggleRead(context.Background(), 1); err != nil {
		t.Fatalf("ToggleRead back: %v", err)
	}
	if s.UnreadCount() != 1 {
		t.Errorf("unread count = %d, want 1", s.UnreadCount())
	}
	if api.callCount("unread") != 1 {
		t.Error("expected a mark-unread call")
	}
}

func TestToggleReadRevertsOnFailure(t *testing.T) {
	api := &mockAPI{
		page:        testPage(1, email(1, false, false)),
		mutationErr: errors.New("boom"),
	}
	s := loadedStore(t, ModeForgiving, api)

	if err := s.ToggleRead(context.Background(), 1); err == nil {
		t.Fatal("user-initiated toggle must surface the failure")
	}
	if s.Emails()[0].IsRead {
		t.Error("optimistic flag should be reverted")
	}
	if s.UnreadCount() != 1 {
		t.Errorf("unread count = %d, want 1 after revert", s.UnreadCount())
	}
}

func TestToggleStarSyncsSelectedCopy(t *testing.T) {
	api := &mockAPI{page: testPage(0, email(1, true, false))}
	s := loadedStore(t, ModeForgiving, api)

	if _, err := s.Open(context.Background(), 1); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.ToggleStar(context.Background(), 1); err != nil {
		t.Fatalf("ToggleStar: %v", err)
	}

	if !s.Emails()[0].IsStarred {
		t.Error("list entry should be starred")
	}
	if sel := s.Selected(); sel == nil || !sel.IsStarred {
		t.Error("selected copy should be starred too")
	}
}

func TestArchiveRemovesFromNonArchivedView(t *testing.T) {
	api := &mockAPI{page: testPage(0, email(1, true, false), email(2, true, false))}
	s := loadedStore(t, ModeForgiving, api)

	if _, err := s.Open(context.Background(), 1); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Archive(context.Background(), 1); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	emails := s.Emails()
	if len(emails) != 1 || emails[0].ID != 2 {
		t.Errorf("archived email should leave the visible list, got %v", emails)
	}
	if s.Selected() != nil {
		t.Error("archiving the selected email should clear the selection")
	}
}

func TestArchiveRemoteFailureLeavesStateUntouched(t *testing.T) {
	api := &mockAPI{
		page:        testPage(0, email(1, true, false)),
		mutationErr: errors.New("boom"),
	}
	s := loadedStore(t, ModeForgiving, api)

	if err := s.Archive(context.Background(), 1); err == nil {
		t.Fatal("archive failure must surface")
	}
	if len(s.Emails()) != 1 {
		t.Error("remote-first archive must not mutate local state on failure")
	}
	if s.Emails()[0].IsArchived {
		t.Error("archived flag should be unchanged on failure")
	}
}

func TestDeleteRemovesAndClearsSelection(t *testing.T) {
	api := &mockAPI{page: testPage(1, email(1, false, false), email(2, true, false))}
	s := loadedStore(t, ModeForgiving, api)

	if _, err := s.Open(context.Background(), 1); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Delete(context.Background(), 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(s.Emails()) != 1 {
		t.Errorf("emails = %v, want only id 2", s.Emails())
	}
	if s.Selected() != nil {
		t.Error("deleting the selected email should clear the selection")
	}
	if api.callCount("delete") != 1 {
		t.Error("expected a remote delete call")
	}
}

func TestPaginationClamps(t *testing.T) {
	api := &mockAPI{page: testPage(0)} // totalPages = 5
	s := loadedStore(t, ModeForgiving, api)

	s.SetPage(3)
	if s.Page() != 3 {
		t.Fatalf("page = %d, want 3", s.Page())
	}

	s.SetPage(0)
	if s.Page() != 3 {
		t.Errorf("page 0 should be a no-op, got %d", s.Page())
	}
	s.SetPage(6)
	if s.Page() != 3 {
		t.Errorf("page beyond totalPages should be a no-op, got %d", s.Page())
	}
	s.SetPage(1)
	if s.Page() != 1 {
		t.Errorf("page = %d, want 1", s.Page())
	}
}

func TestViewSwitchResetsFilters(t *testing.T) {
	api := &mockAPI{page: testPage(0)}
	s := loadedStore(t, ModeForgiving, api)

	// Scramble the filters and move off page 1.
	s.SetUnreadOnly(true)
	s.SetArchived(true)
	s.SetSearch("urgent")
	s.SetPage(2)

	if err := s.SetView(ViewStarred); err != nil {
		t.Fatalf("SetView: %v", err)
	}

	_, unreadOnly, starredOnly, archived := s.Filters()
	if !starredOnly {
		t.Error("starred view must force the starred filter on")
	}
	if unreadOnly || archived {
		t.Error("starred view must clear the other status filters")
	}
	if s.Page() != 1 {
		t.Errorf("page = %d, want 1 after view switch", s.Page())
	}
	if s.Selected() != nil {
		t.Error("view switch must clear the selection")
	}
}

func TestUnknownViewRejected(t *testing.T) {
	s := NewStore(&mockAPI{page: testPage(0)}, ModeForgiving, 20, nil, 0)
	if err := s.SetView(View("spam")); err == nil {
		t.Error("unknown view should be rejected")
	}
}

func TestPlaceholderViewsShortCircuit(t *testing.T) {
	api := &mockAPI{page: testPage(0, email(1, true, false))}
	s := loadedStore(t, ModeForgiving, api)
	fetches := api.callCount("fetch")

	for _, v := range []View{ViewSent, ViewDrafts} {
		if err := s.SetView(v); err != nil {
			t.Fatalf("SetView(%s): %v", v, err)
		}
		page, err := s.Load(context.Background())
		if err != nil {
			t.Fatalf("Load(%s): %v", v, err)
		}
		if len(page.Emails) != 0 {
			t.Errorf("%s view should yield an empty result set", v)
		}
	}

	if api.callCount("fetch") != fetches {
		t.Error("placeholder views must not hit the backend")
	}
}

func TestSearchResetsPage(t *testing.T) {
	api := &mockAPI{page: testPage(0)}
	s := loadedStore(t, ModeForgiving, api)

	s.SetPage(4)
	s.SetSearch("invoice")
	if s.Page() != 1 {
		t.Errorf("page = %d, want 1 after search change", s.Page())
	}

	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if api.lastFilters.Search != "invoice" {
		t.Errorf("search filter = %q, want invoice", api.lastFilters.Search)
	}
}

func TestConcurrentMutationGuard(t *testing.T) {
	api := &mockAPI{
		page:  testPage(1, email(1, false, false)),
		block: make(chan struct{}),
	}
	s := loadedStore(t, ModeForgiving, api)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- s.ToggleRead(context.Background(), 1)
	}()

	<-started
	// Wait for the first mutation to reach the (blocked) remote call.
	deadline := time.After(2 * time.Second)
	for api.callCount("read") == 0 {
		select {
		case <-deadline:
			t.Fatal("first mutation never reached the backend")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := s.ToggleStar(context.Background(), 1); !errors.Is(err, ErrActionInFlight) {
		t.Errorf("second mutation on the same id should return ErrActionInFlight, got %v", err)
	}

	close(api.block)
	if err := <-done; err != nil {
		t.Fatalf("first mutation failed: %v", err)
	}
}

func TestOpenRespectsInFlightGuard(t *testing.T) {
	// Message is read; toggling it unread blocks at the backend. An Open
	// arriving mid-toggle sees the unread flag and must not start a second
	// mark-read alongside the pending mark-unread.
	api := &mockAPI{
		page:  testPage(0, email(1, true, false)),
		block: make(chan struct{}),
	}
	s := loadedStore(t, ModeForgiving, api)

	done := make(chan error, 1)
	go func() {
		done <- s.ToggleRead(context.Background(), 1)
	}()

	deadline := time.After(2 * time.Second)
	for api.callCount("unread") == 0 {
		select {
		case <-deadline:
			t.Fatal("toggle never reached the backend")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := s.Open(context.Background(), 1); !errors.Is(err, ErrActionInFlight) {
		t.Errorf("Open during a pending mutation should return ErrActionInFlight, got %v", err)
	}

	close(api.block)
	if err := <-done; err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	// With the mutation resolved, opening works and issues no extra
	// mark-read: the toggle already left the message unread, so this open
	// marks it read once.
	if _, err := s.Open(context.Background(), 1); err != nil {
		t.Fatalf("Open after mutation resolved: %v", err)
	}
	if api.callCount("read") != 1 {
		t.Errorf("mark-read calls = %d, want 1", api.callCount("read"))
	}
}

func TestSyncInvalidatesAndReports(t *testing.T) {
	api := &mockAPI{page: testPage(0)}
	s := loadedStore(t, ModeForgiving, api)

	result, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Synced != 3 {
		t.Errorf("synced = %d, want 3", result.Synced)
	}
}

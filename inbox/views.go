package inbox

// View is a named folder/filter preset for the mailbox. Switching views
// resets the ad-hoc filters to the view's canonical defaults so the store
// never holds a filter combination inconsistent with the chosen folder.
type View string

const (
	ViewInbox         View = "inbox"
	ViewStarred       View = "starred"
	ViewWaiting       View = "waiting"
	ViewImportant     View = "important"
	ViewSent          View = "sent"
	ViewDrafts        View = "drafts"
	ViewPurchases     View = "purchases"
	ViewSocial        View = "social"
	ViewNotifications View = "notifications"
	ViewForums        View = "forums"
	ViewPromotions    View = "promotions"
)

var allViews = map[View]bool{
	ViewInbox:         true,
	ViewStarred:       true,
	ViewWaiting:       true,
	ViewImportant:     true,
	ViewSent:          true,
	ViewDrafts:        true,
	ViewPurchases:     true,
	ViewSocial:        true,
	ViewNotifications: true,
	ViewForums:        true,
	ViewPromotions:    true,
}

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	return allViews[v]
}

// placeholder views have no backing query yet; loading them yields an empty
// result set instead of an error.
func (v View) placeholder() bool {
	return v == ViewSent || v == ViewDrafts
}

// defaults returns the canonical filter flags for the view:
// unread-only, starred-only, archived.
func (v View) defaults() (unreadOnly, starredOnly, archived bool) {
	switch v {
	case ViewStarred:
		return false, true, false
	case ViewWaiting:
		return true, false, false
	default:
		return false, false, false
	}
}

package models

// InboxPage represents a paginated slice of the mailbox
type InboxPage struct {
	Emails      []ReceivedEmail `json:"emails"`
	Page        int             `json:"page"`
	PageSize    int             `json:"page_size"`
	TotalPages  int             `json:"total_pages"`
	UnreadCount int             `json:"unread_count"`
	HasNext     bool            `json:"has_next"`
	HasPrev     bool            `json:"has_prev"`
}

// NewInboxPage creates a new inbox page response
func NewInboxPage(emails []ReceivedEmail, page, pageSize, totalPages, unreadCount int) *InboxPage {
	if totalPages == 0 {
		totalPages = 1
	}

	return &InboxPage{
		Emails:      emails,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		UnreadCount: unreadCount,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

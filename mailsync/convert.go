package mailsync

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"github.com/emersion/go-imap"

	"maildesk/models"
	"maildesk/utils"
)

// convertMessage maps a fetched IMAP message onto the backend's
// received-email shape. HTML bodies are sanitized before they leave this
// package; the plain-text body doubles as the keyword-scanning text.
func convertMessage(msg *imap.Message, section *imap.BodySectionName) (*models.ReceivedEmail, error) {
	email := &models.ReceivedEmail{
		ID: int64(msg.Uid),
	}

	if msg.Envelope != nil {
		email.Subject = msg.Envelope.Subject
		email.ReceivedAt = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 && msg.Envelope.From[0] != nil {
			email.FromEmail = msg.Envelope.From[0].Address()
			email.FromName = msg.Envelope.From[0].PersonalName
		}
	}

	r := msg.GetBody(section)
	if r != nil {
		if err := parseBody(r, email); err != nil {
			return email, err
		}
	}

	if email.ContentText == "" && email.ContentHTML != "" {
		email.ContentText = utils.HTMLToText(email.ContentHTML)
	}
	email.Snippet = utils.Snippet(email.ContentText)

	return email, nil
}

func parseBody(r io.Reader, email *models.ReceivedEmail) error {
	m, err := mail.ReadMessage(r)
	if err != nil {
		return fmt.Errorf("error parsing message: %v", err)
	}

	contentType := m.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		body, err := io.ReadAll(m.Body)
		if err != nil {
			return fmt.Errorf("error reading body: %v", err)
		}
		setPart(email, contentType, body)
		return nil
	}

	mr := multipart.NewReader(m.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			utils.Log.Warn("error getting next part: %v", err)
			continue
		}

		partType := p.Header.Get("Content-Type")
		disposition := p.Header.Get("Content-Disposition")
		if strings.HasPrefix(disposition, "attachment") {
			recordAttachment(email, p)
			continue
		}

		partData, err := io.ReadAll(p)
		if err != nil {
			utils.Log.Warn("error reading part: %v", err)
			continue
		}
		setPart(email, partType, partData)
	}
	return nil
}

func setPart(email *models.ReceivedEmail, contentType string, data []byte) {
	switch {
	case strings.Contains(contentType, "text/html"):
		email.ContentHTML = utils.SanitizeHTML(string(data))
	default:
		// text/plain and untyped bodies land here
		if email.ContentText == "" {
			email.ContentText = strings.TrimSpace(string(data))
		}
	}
}

func recordAttachment(email *models.ReceivedEmail, p *multipart.Part) {
	filename := p.FileName()
	if filename == "" {
		filename = "attachment"
	}

	// Attachment content stays on the mail server; the backend only needs
	// the name and size for list rendering.
	size, _ := io.Copy(io.Discard, p)

	email.Attachments = append(email.Attachments, models.Attachment{
		Filename: filename,
		Size:     size,
	})
	email.HasAttachments = true
}

package domain

import "strings"

// Gmail system label ids touched by the facade.
const (
	LabelUnread    = "UNREAD"
	LabelStarred   = "STARRED"
	LabelImportant = "IMPORTANT"
)

// Label visibility values sent when a label is created.
const (
	LabelListShow   = "labelShow"
	MessageListShow = "show"
)

// Message formats accepted by GetMessage.
const (
	FormatFull     = "full"
	FormatMetadata = "metadata"
)

// SendTimeLayout is the accepted format of a schedule's send_time.
const SendTimeLayout = "2006-01-02 15:04:05"

const (
	DefaultSearchMax = 5
	NoContent        = "No content available"
	NoSubject        = "No Subject"
)

// SendRequest is an outgoing plain-text message.
type SendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Cc      string `json:"cc,omitempty"` // address list as typed by the caller
	Bcc     string `json:"bcc,omitempty"`

	// Reply threading; empty for fresh messages.
	ThreadID   string `json:"thread_id,omitempty"`
	InReplyTo  string `json:"in_reply_to,omitempty"`
	References string `json:"references,omitempty"`
}

// Label is a provider label.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessageRef is one entry of a message listing.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// MimePart is the provider's structured body. Data is already base64-decoded.
type MimePart struct {
	MimeType string
	Data     []byte
	Parts    []*MimePart
}

// Message is a fetched message.
type Message struct {
	ID       string
	ThreadID string
	LabelIDs []string
	Snippet  string
	Headers  map[string]string // canonical keys, first value wins
	Payload  *MimePart
}

// Header looks a header up case-insensitively.
func (m *Message) Header(name string) string {
	if m == nil || m.Headers == nil {
		return ""
	}
	if v, ok := m.Headers[name]; ok {
		return v
	}
	for k, v := range m.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// PlainText returns the readable body of a payload. A single-part payload
// returns its own data whatever its type; a multipart payload returns the
// first text/plain leaf, searching nested multiparts depth-first.
func (p *MimePart) PlainText() (string, bool) {
	if p == nil {
		return "", false
	}
	if len(p.Parts) == 0 {
		if len(p.Data) == 0 {
			return "", false
		}
		return string(p.Data), true
	}
	return p.firstPlainLeaf()
}

func (p *MimePart) firstPlainLeaf() (string, bool) {
	for _, part := range p.Parts {
		if len(part.Parts) > 0 {
			if body, ok := part.firstPlainLeaf(); ok {
				return body, true
			}
			continue
		}
		if strings.HasPrefix(strings.ToLower(part.MimeType), "text/plain") {
			return string(part.Data), true
		}
	}
	return "", false
}

// SendResult is returned by a successful send.
type SendResult struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	LabelIDs []string `json:"labelIds,omitempty"`
}

// ModifyResult is returned by a label modification.
type ModifyResult struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	LabelIDs []string `json:"labelIds,omitempty"`
}

// EmailSummary is one search hit.
type EmailSummary struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

package mail

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"facade_server/core/domain"

	gomail "github.com/emersion/go-message/mail"
)

// BuildMessage renders req as a single-part text/plain RFC 5322 message.
func BuildMessage(req domain.SendRequest, now time.Time) ([]byte, error) {
	var h gomail.Header
	h.SetDate(now)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.SetSubject(req.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	setAddressHeader(&h, "To", req.To)
	setAddressHeader(&h, "Cc", req.Cc)
	setAddressHeader(&h, "Bcc", req.Bcc)

	if req.InReplyTo != "" {
		h.Set("In-Reply-To", req.InReplyTo)
	}
	if req.References != "" {
		h.Set("References", req.References)
	}

	var buf bytes.Buffer
	w, err := gomail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}
	if _, err := io.WriteString(w, req.Body); err != nil {
		return nil, fmt.Errorf("write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message writer: %w", err)
	}
	return buf.Bytes(), nil
}

// setAddressHeader parses value as an address list so display names are
// encoded; anything that does not parse is passed through unchanged and
// left to the provider to reject.
func setAddressHeader(h *gomail.Header, key, value string) {
	if value == "" {
		return
	}
	if addrs, err := gomail.ParseAddressList(value); err == nil && len(addrs) > 0 {
		h.SetAddressList(key, addrs)
		return
	}
	h.Set(key, value)
}

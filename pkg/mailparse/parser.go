// Package mailparse turns raw RFC 822 bytes into the fields the receipt
// pipeline works with.
package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	emaildomain "github.com/vynious/finOS/internal/email/domain"
	"github.com/vynious/finOS/pkg/htmltext"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

var ErrNoBody = errors.New("message has no text or html body")

// Parse reads headers and the first text/html and text/plain inline parts.
// Unknown charsets are tolerated and read as-is.
func Parse(raw []byte) (*emaildomain.NormalizedContent, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer mr.Close()

	content := &emaildomain.NormalizedContent{}

	if subject, err := mr.Header.Subject(); err == nil {
		content.Subject = strings.TrimSpace(subject)
	} else {
		content.Subject = strings.TrimSpace(mr.Header.Get("Subject"))
	}

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		content.FromName = strings.TrimSpace(from[0].Name)
		content.FromAddress = strings.ToLower(from[0].Address)
	}

	// a Date at or before the epoch is a placeholder, not a send time
	if date, err := mr.Header.Date(); err == nil && date.Unix() > 0 {
		sec := date.Unix()
		content.SentAt = &sec
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}
		if p == nil {
			continue
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := h.ContentType()

		switch mediaType {
		case "text/html":
			if content.HTML != "" {
				continue
			}
			body, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read html part: %w", err)
			}
			content.HTML = string(body)
		case "text/plain", "":
			if content.PlainText != "" {
				continue
			}
			body, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read text part: %w", err)
			}
			content.PlainText = string(body)
		}
	}

	if content.HTML != "" {
		content.Text = htmltext.ToText(content.HTML)
	}
	if content.Text == "" {
		content.Text = htmltext.Clean(content.PlainText)
	}
	if content.Text == "" {
		return nil, ErrNoBody
	}

	return content, nil
}

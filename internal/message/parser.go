// Package message turns raw mailbox bytes into the fields ingestion needs.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset" // registers non-UTF-8 decoders
	"github.com/emersion/go-message/mail"
)

// DefaultTitle is used when a message has no subject.
const DefaultTitle = "제목 없음"

// ParseError indicates a message could not be parsed.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing message: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err (or any error in its chain) is a ParseError.
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// Parsed is the decoded content of one message.
type Parsed struct {
	// From is the lower-cased sender address.
	From     string
	FromName string
	Subject  string
	HTMLBody string
	TextBody string

	// Date is the Date header in UTC. It is zero when HasDate is false.
	Date    time.Time
	HasDate bool
}

// Body returns the HTML body, the text body when there is no HTML, or "".
func (p *Parsed) Body() string {
	if p.HTMLBody != "" {
		return p.HTMLBody
	}
	return p.TextBody
}

// Title returns the subject, or DefaultTitle when it is empty.
func (p *Parsed) Title() string {
	if s := strings.TrimSpace(p.Subject); s != "" {
		return s
	}
	return DefaultTitle
}

// Parse decodes a raw RFC 5322 message. The first text/plain and first
// text/html inline parts become the bodies; attachments are ignored.
func Parse(raw []byte) (*Parsed, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ParseError{Err: errors.New("empty message")}
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return nil, &ParseError{Err: err}
	}
	defer mr.Close()

	from, err := mr.Header.AddressList("From")
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("reading From header: %w", err)}
	}
	if len(from) == 0 || from[0].Address == "" {
		return nil, &ParseError{Err: errors.New("missing From header")}
	}

	p := &Parsed{
		From:     strings.ToLower(strings.TrimSpace(from[0].Address)),
		FromName: from[0].Name,
	}

	if subject, err := mr.Header.Subject(); err == nil {
		p.Subject = subject
	} else {
		p.Subject = mr.Header.Get("Subject")
	}

	if mr.Header.Has("Date") {
		if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
			p.Date = date.UTC()
			p.HasDate = true
		}
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if p.HTMLBody == "" && p.TextBody == "" {
				return nil, &ParseError{Err: fmt.Errorf("reading body: %w", err)}
			}
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/html") && p.HTMLBody == "":
			p.HTMLBody = string(body)
		case (contentType == "" || strings.HasPrefix(contentType, "text/plain")) && p.TextBody == "":
			p.TextBody = string(body)
		}
	}

	return p, nil
}

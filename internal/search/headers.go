package search

import (
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	gmail "google.golang.org/api/gmail/v1"
)

// isoMillis is the ISO-8601 layout used for summary dates.
const isoMillis = "2006-01-02T15:04:05.000Z"

// dateLayouts are tried when the header is not RFC 5322 compliant.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// headerValue returns the first header named name, compared case-insensitively.
func headerValue(headers []*gmail.MessagePartHeader, name string) (string, bool) {
	for _, h := range headers {
		if h != nil && strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

func messageHeaders(msg *gmail.Message) []*gmail.MessagePartHeader {
	if msg == nil || msg.Payload == nil {
		return nil
	}
	return msg.Payload.Headers
}

// ParseFrom splits a From header value on the first "<" into a display
// name and an address. Encoded words are decoded first.
func ParseFrom(value string) (name, email string) {
	if value == "" {
		return "", ""
	}

	h := mail.HeaderFromMap(map[string][]string{"From": {value}})
	if decoded, err := h.Text("From"); err == nil {
		value = decoded
	}

	before, after, found := strings.Cut(value, "<")
	name = strings.TrimSpace(before)
	if found {
		email = strings.TrimSpace(strings.Replace(after, ">", "", 1))
	}
	return name, email
}

// ParseDate converts a Date header value to an ISO-8601 UTC timestamp with
// millisecond precision. It returns nil when the value is empty or cannot
// be parsed.
func ParseDate(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	h := mail.HeaderFromMap(map[string][]string{"Date": {value}})
	t, err := h.Date()
	if err != nil || t.IsZero() {
		t, err = parseLooseDate(value)
		if err != nil {
			return nil
		}
	}

	s := t.UTC().Format(isoMillis)
	return &s
}

func parseLooseDate(value string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

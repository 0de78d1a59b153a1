package batch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// DefaultBoundary is the boundary token used for outgoing Gmail batches.
const DefaultBoundary = "batch_gmail_api"

const crlf = "\r\n"

// Param is one query parameter. Params are kept as an ordered list so the
// encoded request line is deterministic.
type Param struct {
	Key   string
	Value string
}

// SubRequest is a single HTTP request embedded in a batch envelope.
type SubRequest struct {
	// Method defaults to GET.
	Method string
	// URI is the absolute path of the request, e.g. /gmail/v1/users/me/messages/abc.
	URI   string
	Query []Param
	// Body is written verbatim after a JSON content header when non-empty.
	Body json.RawMessage
	// ContentID is sent as the part's Content-ID and echoed back by the
	// provider on the matching response part.
	ContentID string
}

// JSONBody marshals v for use as a SubRequest body.
func JSONBody(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch body: %w", err)
	}
	return b, nil
}

// Envelope is a full batch request. Boundary must not occur inside any
// part's URI or body; that is not checked.
type Envelope struct {
	Boundary string
	Parts    []SubRequest
}

// ContentType returns the multipart Content-Type header value for the envelope.
func (e Envelope) ContentType() string {
	return fmt.Sprintf("multipart/mixed; boundary=%q", e.boundary())
}

func (e Envelope) boundary() string {
	if e.Boundary == "" {
		return DefaultBoundary
	}
	return e.Boundary
}

// Encode serializes the envelope into a multipart/mixed body.
// An envelope with no parts encodes to the terminator alone.
func Encode(e Envelope) string {
	boundary := e.boundary()

	var sb strings.Builder
	for _, part := range e.Parts {
		writePart(&sb, boundary, part)
	}
	sb.WriteString("--")
	sb.WriteString(boundary)
	sb.WriteString("--")
	return sb.String()
}

func writePart(sb *strings.Builder, boundary string, part SubRequest) {
	method := part.Method
	if method == "" {
		method = "GET"
	}

	sb.WriteString("--" + boundary + crlf)
	sb.WriteString("Content-Type: application/http" + crlf)
	if part.ContentID != "" {
		sb.WriteString("Content-ID: <" + part.ContentID + ">" + crlf)
	}
	sb.WriteString(crlf)

	sb.WriteString(method + " " + part.URI)
	if qs := encodeQuery(part.Query); qs != "" {
		sb.WriteString("?" + qs)
	}
	sb.WriteString(crlf)

	if len(part.Body) > 0 {
		sb.WriteString("Content-Type: application/json" + crlf)
		sb.WriteString(crlf)
		sb.Write(part.Body)
		sb.WriteString(crlf)
		return
	}
	sb.WriteString(crlf)
}

// encodeQuery percent-encodes keys and values the way encodeURIComponent
// does, so spaces become %20 rather than +.
func encodeQuery(params []Param) string {
	if len(params) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(params))
	for _, p := range params {
		pairs = append(pairs, escape(p.Key)+"="+escape(p.Value))
	}
	return strings.Join(pairs, "&")
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

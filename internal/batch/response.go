package batch

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/teemow/attachfinder/internal/logging"
)

// Reasons recorded for dropped response fragments.
const (
	ReasonNotJSON   = "non-JSON part"
	ReasonNoJSON    = "no valid JSON"
	ReasonMalformed = "malformed JSON"
)

// jsonMarker is matched case-sensitively, the way the provider emits it.
const jsonMarker = "Content-Type: application/json"

var (
	// defaultSplit matches provider-assigned response boundaries such as
	// --batch_abc-123.
	defaultSplit = regexp.MustCompile(`--batch_[\w-]+`)

	contentIDPattern = regexp.MustCompile(`(?im)^Content-ID:\s*<?([^>\r\n]+)>?\s*$`)
	statusPattern    = regexp.MustCompile(`HTTP/\d(?:\.\d)?\s+(\d{3})`)
)

// Part is one successfully decoded response fragment.
type Part struct {
	// Index is the fragment's position in the envelope, starting at 0.
	Index int
	// ContentID is the part's Content-ID without angle brackets, if any.
	ContentID string
	// Status is the embedded HTTP status code, or 0 when none was found.
	Status int
	Body   json.RawMessage
}

// Skip records a fragment the decoder dropped.
type Skip struct {
	Index     int
	ContentID string
	Reason    string
}

// Result is the outcome of decoding an envelope. Parts keeps encounter order.
type Result struct {
	Parts   []Part
	Skipped []Skip
}

// Decoder splits batch response bodies into JSON documents.
type Decoder struct {
	split  *regexp.Regexp
	logger *slog.Logger
}

// NewDecoder returns a decoder for responses framed by boundary. An empty
// boundary matches any provider-assigned batch_ token.
func NewDecoder(boundary string, logger *slog.Logger) *Decoder {
	split := defaultSplit
	if boundary != "" {
		split = regexp.MustCompile("--" + regexp.QuoteMeta(boundary))
	}
	return &Decoder{
		split:  split,
		logger: logging.WithOperation(logging.OrDiscard(logger), "batch.decode"),
	}
}

// Decode never fails: every fragment either lands in Parts or in Skipped.
func (d *Decoder) Decode(raw string) Result {
	var res Result

	index := 0
	for _, fragment := range d.split.Split(raw, -1) {
		trimmed := strings.TrimSpace(fragment)
		if trimmed == "" || trimmed == "--" {
			continue
		}
		i := index
		index++

		contentID := findContentID(fragment)

		if !strings.Contains(fragment, jsonMarker) {
			res.skip(d.logger, i, contentID, ReasonNotJSON)
			continue
		}

		start := strings.Index(fragment, "{")
		end := strings.LastIndex(fragment, "}")
		if start < 0 || end < start {
			res.skip(d.logger, i, contentID, ReasonNoJSON)
			continue
		}

		body := fragment[start : end+1]
		if !json.Valid([]byte(body)) {
			res.skip(d.logger, i, contentID, ReasonMalformed)
			continue
		}

		res.Parts = append(res.Parts, Part{
			Index:     i,
			ContentID: contentID,
			Status:    findStatus(fragment),
			Body:      json.RawMessage(body),
		})
	}

	return res
}

func (r *Result) skip(logger *slog.Logger, index int, contentID, reason string) {
	logger.Warn("skipping batch response part",
		logging.Part(index),
		slog.String("content_id", contentID),
		slog.String("reason", reason))
	r.Skipped = append(r.Skipped, Skip{Index: index, ContentID: contentID, Reason: reason})
}

func findContentID(fragment string) string {
	m := contentIDPattern.FindStringSubmatch(fragment)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func findStatus(fragment string) int {
	m := statusPattern.FindStringSubmatch(fragment)
	if m == nil {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return code
}

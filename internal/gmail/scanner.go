package gmail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teemow/attachfinder/internal/logging"
)

const (
	// DefaultPageSize is the number of ids a scan collects when the caller
	// does not ask for a size.
	DefaultPageSize = 5

	// MaxPageSize caps the page size accepted from clients.
	MaxPageSize = 100

	// DefaultMaxDepth bounds the number of continuation pages one scan follows.
	DefaultMaxDepth = 10
)

// Lister lists message ids one provider page at a time.
type Lister interface {
	ListMessageIDs(ctx context.Context, query, pageToken string, maxResults int64) (ListPage, error)
}

// ScanResult is the outcome of one scan.
type ScanResult struct {
	IDs []string
	// NextPageToken is empty when there are no further pages, or when the
	// depth budget ran out.
	NextPageToken string
	// Calls is the number of provider list calls made.
	Calls int
	// Exhausted is set when the scan stopped because of the depth budget.
	Exhausted bool
}

// Scanner collects message ids across provider pages.
type Scanner struct {
	lister   Lister
	maxDepth int
	logger   *slog.Logger
}

// NewScanner returns a scanner that follows at most maxDepth continuation
// pages after the first call. maxDepth <= 0 selects DefaultMaxDepth.
func NewScanner(lister Lister, maxDepth int, logger *slog.Logger) *Scanner {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Scanner{
		lister:   lister,
		maxDepth: maxDepth,
		logger:   logging.WithOperation(logging.OrDiscard(logger), "gmail.scan"),
	}
}

// Scan collects up to pageSize ids matching query, starting at pageToken.
//
// A provider page shorter than the remaining budget that still carries a
// continuation token is followed, up to maxDepth times. The returned token
// is the provider's token when the budget filled up, and empty at the end
// of the result set or when the depth budget is exhausted. Provider errors
// are returned as is, wrapped; nothing is retried.
func (s *Scanner) Scan(ctx context.Context, query, pageToken string, pageSize int) (ScanResult, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var res ScanResult
	token := pageToken

	for depth := 0; ; depth++ {
		if depth > s.maxDepth {
			s.logger.Warn("scan depth budget exhausted",
				slog.Int("max_depth", s.maxDepth),
				slog.Int("ids", len(res.IDs)),
				logging.QueryHash(query))
			res.NextPageToken = ""
			res.Exhausted = true
			return res, nil
		}

		remaining := pageSize - len(res.IDs)
		page, err := s.lister.ListMessageIDs(ctx, query, token, int64(remaining))
		if err != nil {
			return ScanResult{}, fmt.Errorf("failed to list messages: %w", err)
		}
		res.Calls++
		res.IDs = append(res.IDs, page.IDs...)

		if page.NextPageToken == "" {
			res.NextPageToken = ""
			return res, nil
		}
		if len(res.IDs) >= pageSize {
			res.NextPageToken = page.NextPageToken
			return res, nil
		}
		token = page.NextPageToken
	}
}

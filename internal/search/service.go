package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	gmail "google.golang.org/api/gmail/v1"

	igmail "github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/instrumentation"
	"github.com/teemow/attachfinder/internal/logging"
)

// attachmentFilter is appended to every query.
const attachmentFilter = "has:attachment"

// Stages at which a message can be excluded from a page.
const (
	StageFetch   = "fetch"
	StageInvalid = "invalid"
	StageResolve = "resolve"
)

// IDScanner collects message ids for a query.
type IDScanner interface {
	Scan(ctx context.Context, query, pageToken string, pageSize int) (igmail.ScanResult, error)
}

// MessageFetcher retrieves full messages by id.
type MessageFetcher interface {
	FetchFull(ctx context.Context, ids []string) (*igmail.FetchResult, error)
}

// AttachmentResolver lists the attachments of one message.
type AttachmentResolver interface {
	ResolveAttachments(ctx context.Context, msg *gmail.Message) ([]igmail.Attachment, error)
}

// Request is one page request.
type Request struct {
	Query     string
	PageToken string
	// PageSize defaults to gmail.DefaultPageSize.
	PageSize int
}

// AttachmentRef is the attachment metadata carried by a summary.
type AttachmentRef struct {
	MimeType     string `json:"mimeType" yaml:"mimeType"`
	Filename     string `json:"filename" yaml:"filename"`
	AttachmentID string `json:"attachmentId" yaml:"attachmentId"`
	DownloadURL  string `json:"downloadUrl,omitempty" yaml:"downloadUrl,omitempty"`
}

// EmailSummary describes one matching message.
type EmailSummary struct {
	ID          string          `json:"id" yaml:"id"`
	ThreadID    string          `json:"threadId" yaml:"threadId"`
	Snippet     string          `json:"snippet" yaml:"snippet"`
	Date        *string         `json:"date" yaml:"date"`
	SenderName  string          `json:"senderName" yaml:"senderName"`
	SenderEmail string          `json:"senderEmail" yaml:"senderEmail"`
	Attachments []AttachmentRef `json:"attachments" yaml:"attachments"`
}

// Exclusion records a message that was dropped because processing it failed.
type Exclusion struct {
	MessageID string `json:"messageId" yaml:"messageId"`
	Stage     string `json:"stage" yaml:"stage"`
	Reason    string `json:"reason" yaml:"reason"`
}

// Page is one page of search results.
type Page struct {
	Emails []EmailSummary `json:"emails" yaml:"emails"`
	// NextPageToken is nil when there are no further pages.
	NextPageToken *string `json:"nextPageToken" yaml:"nextPageToken"`
	// Excluded lists suppressed per-message failures.
	Excluded []Exclusion `json:"-" yaml:"-"`
	// Exhausted is set when the scan stopped at its depth budget.
	Exhausted bool `json:"-" yaml:"-"`
}

// Token returns the continuation token, or "" at the end of results.
func (p *Page) Token() string {
	if p == nil || p.NextPageToken == nil {
		return ""
	}
	return *p.NextPageToken
}

// Options configures a Service.
type Options struct {
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Service runs attachment searches. It holds no per-search state and is
// safe for concurrent use when its collaborators are.
type Service struct {
	scanner  IDScanner
	fetcher  MessageFetcher
	resolver AttachmentResolver
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// NewService returns a Service composed of the given stages.
func NewService(scanner IDScanner, fetcher MessageFetcher, resolver AttachmentResolver, opts Options) *Service {
	return &Service{
		scanner:  scanner,
		fetcher:  fetcher,
		resolver: resolver,
		logger:   logging.WithOperation(logging.OrDiscard(opts.Logger), instrumentation.OperationSearch),
		metrics:  opts.Metrics,
	}
}

// BuildQuery restricts query to messages with attachments.
func BuildQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return attachmentFilter
	}
	return query + " AND " + attachmentFilter
}

// Search returns one page of messages with attachments matching req.
// Transport and authentication failures fail the whole page.
func (s *Service) Search(ctx context.Context, req Request) (*Page, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = igmail.DefaultPageSize
	}

	attrs := instrumentation.NewSpanAttributeBuilder().WithPageSize(pageSize).Build()
	ctx, span := instrumentation.StartSpan(ctx, "search.Search", attrs...)
	defer span.End()

	start := time.Now()
	page, err := s.search(ctx, req.Query, req.PageToken, pageSize)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		s.metrics.RecordSearch(ctx, instrumentation.StatusError, 0, time.Since(start))
		s.logger.Error("search failed", logging.QueryHash(req.Query), logging.Err(err))
		return nil, err
	}

	instrumentation.SetSpanSuccess(span)
	s.metrics.RecordSearch(ctx, instrumentation.StatusSuccess, len(page.Emails), time.Since(start))
	s.logger.Info("search completed",
		logging.QueryHash(req.Query),
		slog.Int("emails", len(page.Emails)),
		slog.Int("excluded", len(page.Excluded)),
		slog.Bool("more", page.NextPageToken != nil),
		slog.Duration(logging.KeyDuration, time.Since(start)))
	return page, nil
}

func (s *Service) search(ctx context.Context, query, pageToken string, pageSize int) (*Page, error) {
	scan, err := s.scanner.Scan(ctx, BuildQuery(query), pageToken, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to scan message ids: %w", err)
	}

	page := &Page{Emails: []EmailSummary{}, Exhausted: scan.Exhausted}
	if len(scan.IDs) == 0 {
		s.logger.Debug("no messages matched", logging.QueryHash(query))
		return page, nil
	}
	if scan.NextPageToken != "" {
		token := scan.NextPageToken
		page.NextPageToken = &token
	}

	fetched, err := s.fetcher.FetchFull(ctx, scan.IDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	for _, sk := range fetched.Skipped {
		s.exclude(ctx, page, sk.ID, StageFetch, sk.Reason)
	}

	var messages []*gmail.Message
	for _, msg := range fetched.Messages {
		if msg == nil || msg.Id == "" {
			s.exclude(ctx, page, "", StageInvalid, "message has no id")
			continue
		}
		messages = append(messages, msg)
	}

	resolved := s.resolve(ctx, messages)

	for i, msg := range messages {
		r := resolved[i]
		if r.err != nil {
			s.exclude(ctx, page, msg.Id, StageResolve, r.err.Error())
			continue
		}
		if len(r.attachments) == 0 {
			s.logger.Debug("message has no attachments", logging.MessageID(msg.Id))
			continue
		}

		summary := summarize(msg, r.attachments)
		s.metrics.RecordAttachments(ctx, len(summary.Attachments), summary.SenderEmail)
		page.Emails = append(page.Emails, summary)
	}

	return page, nil
}

type resolution struct {
	attachments []igmail.Attachment
	err         error
}

// resolve looks up attachments for every message concurrently. Failures are
// kept per message so a single lookup cannot cancel the others.
func (s *Service) resolve(ctx context.Context, messages []*gmail.Message) []resolution {
	results := make([]resolution, len(messages))

	var g errgroup.Group
	for i, msg := range messages {
		g.Go(func() error {
			attachments, err := s.resolver.ResolveAttachments(ctx, msg)
			results[i] = resolution{attachments: attachments, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) exclude(ctx context.Context, page *Page, messageID, stage, reason string) {
	s.logger.Warn("excluding message from page",
		logging.MessageID(messageID),
		slog.String("stage", stage),
		slog.String("reason", reason))
	s.metrics.RecordSearchExcluded(ctx, stage)
	page.Excluded = append(page.Excluded, Exclusion{MessageID: messageID, Stage: stage, Reason: reason})
}

func summarize(msg *gmail.Message, attachments []igmail.Attachment) EmailSummary {
	headers := messageHeaders(msg)

	var date *string
	if v, ok := headerValue(headers, "Date"); ok {
		date = ParseDate(v)
	}
	from, _ := headerValue(headers, "From")
	name, email := ParseFrom(from)

	refs := make([]AttachmentRef, 0, len(attachments))
	for _, a := range attachments {
		refs = append(refs, AttachmentRef{
			MimeType:     a.MimeType,
			Filename:     a.Filename,
			AttachmentID: a.AttachmentID,
		})
	}

	return EmailSummary{
		ID:          msg.Id,
		ThreadID:    msg.ThreadId,
		Snippet:     msg.Snippet,
		Date:        date,
		SenderName:  name,
		SenderEmail: email,
		Attachments: refs,
	}
}

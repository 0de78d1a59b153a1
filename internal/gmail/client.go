package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/attachfinder/internal/google"
	"github.com/teemow/attachfinder/internal/instrumentation"
	"github.com/teemow/attachfinder/internal/logging"
)

// userID is the Gmail API alias for the authenticated account.
const userID = "me"

// Options configures a Client.
type Options struct {
	// APIEndpoint overrides the Gmail REST base URL.
	APIEndpoint string

	// BatchEndpoint overrides DefaultBatchEndpoint.
	BatchEndpoint string

	// BatchLimit is the number of sub-requests per batch envelope
	// (default DefaultBatchLimit).
	BatchLimit int

	// RateLimit caps per-message API calls per second. Zero disables it.
	RateLimit float64

	// Timeout bounds each batch round trip (default 30s).
	Timeout time.Duration

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Client wraps the Gmail Users service and the batch fetcher.
type Client struct {
	svc     *gmail.UsersService
	fetcher *Fetcher
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewClient creates a Gmail client authenticated by creds.
func NewClient(ctx context.Context, creds google.CredentialProvider, opts Options) (*Client, error) {
	httpClient, err := creds.HTTPClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found: %w", err)
	}

	svcOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.APIEndpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(opts.APIEndpoint))
	}
	svc, err := gmail.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := logging.WithService(logging.OrDiscard(opts.Logger), instrumentation.ServiceGmail)

	fetcher := NewFetcher(creds, FetcherConfig{
		Endpoint:   opts.BatchEndpoint,
		Limit:      opts.BatchLimit,
		HTTPClient: &http.Client{Transport: google.HTTP1Transport(), Timeout: timeout},
		Logger:     logger,
		Metrics:    opts.Metrics,
	})

	return newClient(svc.Users, fetcher, opts.RateLimit, logger, opts.Metrics), nil
}

func newClient(users *gmail.UsersService, fetcher *Fetcher, rps float64, logger *slog.Logger, metrics *instrumentation.Metrics) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Client{
		svc:     users,
		fetcher: fetcher,
		limiter: limiter,
		logger:  logging.OrDiscard(logger),
		metrics: metrics,
	}
}

// Fetcher returns the batch fetcher bound to this client's credentials.
func (c *Client) Fetcher() *Fetcher {
	return c.fetcher
}

// FetchFull retrieves full messages through the batch endpoint.
func (c *Client) FetchFull(ctx context.Context, ids []string) (*FetchResult, error) {
	return c.fetcher.FetchFull(ctx, ids)
}

// ListMessageIDs returns one page of message ids matching query.
func (c *Client) ListMessageIDs(ctx context.Context, query, pageToken string, maxResults int64) (ListPage, error) {
	var page ListPage
	err := c.observe(ctx, instrumentation.OperationList, "", func(ctx context.Context) error {
		call := c.svc.Messages.List(userID).Q(query).Context(ctx)
		if maxResults > 0 {
			call = call.MaxResults(maxResults)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return err
		}
		page.NextPageToken = res.NextPageToken
		page.ResultSizeEstimate = res.ResultSizeEstimate
		for _, m := range res.Messages {
			if m != nil && m.Id != "" {
				page.IDs = append(page.IDs, m.Id)
			}
		}
		return nil
	})
	if err != nil {
		return ListPage{}, err
	}
	return page, nil
}

// observe wraps one Gmail API call with rate limiting, a client span, and
// operation metrics.
func (c *Client) observe(ctx context.Context, op, messageID string, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	attrs := instrumentation.NewSpanAttributeBuilder().WithMessageID(messageID).Build()
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, op, attrs...)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		c.logger.Debug("gmail call failed", logging.Operation(op), logging.MessageID(messageID), logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, op, status, elapsed)
	return err
}

package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/attachfinder/internal/batch"
	"github.com/teemow/attachfinder/internal/instrumentation"
	"github.com/teemow/attachfinder/internal/logging"
)

const (
	// DefaultBatchEndpoint is the Gmail batch URL.
	DefaultBatchEndpoint = "https://www.googleapis.com/batch/gmail/v1"

	// DefaultBatchLimit is the number of messages requested per envelope.
	DefaultBatchLimit = 5

	// maxBatchResponseSize caps how much of a batch response is read.
	maxBatchResponseSize = 64 << 20

	requestIDPrefix  = "msg-"
	responseIDPrefix = "response-"
)

// TokenSource supplies bearer tokens for the batch endpoint.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetcherConfig configures a Fetcher. Zero values select defaults.
type FetcherConfig struct {
	Endpoint   string
	Limit      int
	Boundary   string
	HTTPClient Doer
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
}

// SkippedMessage records a requested message that did not come back.
type SkippedMessage struct {
	// ID is empty when the failed part could not be correlated.
	ID     string
	Reason string
}

// FetchResult holds decoded messages in request order. Parts that could not
// be correlated to a requested id follow in encounter order.
type FetchResult struct {
	Messages []*gmail.Message
	Skipped  []SkippedMessage
	// Batches is the number of batch round trips made.
	Batches int
}

// BatchError is returned when the batch endpoint itself rejects the request.
type BatchError struct {
	StatusCode int
	Body       string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch request failed with status %d: %s", e.StatusCode, e.Body)
}

// Fetcher retrieves many messages through the batch endpoint.
type Fetcher struct {
	tokens   TokenSource
	endpoint string
	limit    int
	boundary string
	client   Doer
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// NewFetcher returns a fetcher authenticated by tokens.
func NewFetcher(tokens TokenSource, cfg FetcherConfig) *Fetcher {
	f := &Fetcher{
		tokens:   tokens,
		endpoint: cfg.Endpoint,
		limit:    cfg.Limit,
		boundary: cfg.Boundary,
		client:   cfg.HTTPClient,
		logger:   logging.WithOperation(logging.OrDiscard(cfg.Logger), "gmail.batch"),
		metrics:  cfg.Metrics,
	}
	if f.endpoint == "" {
		f.endpoint = DefaultBatchEndpoint
	}
	if f.limit <= 0 {
		f.limit = DefaultBatchLimit
	}
	if f.boundary == "" {
		f.boundary = batch.DefaultBoundary
	}
	if f.client == nil {
		f.client = http.DefaultClient
	}
	return f
}

// Limit returns the batch ceiling.
func (f *Fetcher) Limit() int {
	return f.limit
}

// FetchFull retrieves the full representation of every id. Ids beyond the
// batch ceiling are sent in further envelopes. Transport failures and
// non-2xx batch responses are returned as errors; parts that fail
// individually are reported in FetchResult.Skipped.
func (f *Fetcher) FetchFull(ctx context.Context, ids []string) (*FetchResult, error) {
	res := &FetchResult{}
	for start := 0; start < len(ids); start += f.limit {
		end := min(start+f.limit, len(ids))
		if err := f.fetchBatch(ctx, ids[start:end], res); err != nil {
			return nil, err
		}
		res.Batches++
	}
	return res, nil
}

func (f *Fetcher) fetchBatch(ctx context.Context, ids []string, res *FetchResult) error {
	attrs := instrumentation.NewSpanAttributeBuilder().WithBatchSize(len(ids)).Build()
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationBatchGet, attrs...)
	defer span.End()

	start := time.Now()
	decoded, err := f.roundTrip(ctx, ids)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	f.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationBatchGet, status, time.Since(start))
	if err != nil {
		return err
	}

	f.metrics.RecordBatch(ctx, len(ids), len(decoded.Parts), len(decoded.Skipped))
	correlate(ids, decoded, res, f.logger)
	return nil
}

func (f *Fetcher) roundTrip(ctx context.Context, ids []string) (batch.Result, error) {
	env := batch.Envelope{Boundary: f.boundary}
	for _, id := range ids {
		env.Parts = append(env.Parts, batch.SubRequest{
			Method:    http.MethodGet,
			URI:       "/gmail/v1/users/" + userID + "/messages/" + url.PathEscape(id),
			ContentID: requestIDPrefix + id,
		})
	}

	token, err := f.tokens.AccessToken(ctx)
	if err != nil {
		return batch.Result{}, fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewBufferString(batch.Encode(env)))
	if err != nil {
		return batch.Result{}, fmt.Errorf("failed to create batch request: %w", err)
	}
	req.Header.Set("Content-Type", env.ContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := f.client.Do(req)
	if err != nil {
		return batch.Result{}, fmt.Errorf("batch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return batch.Result{}, &BatchError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBatchResponseSize))
	if err != nil {
		return batch.Result{}, fmt.Errorf("failed to read batch response: %w", err)
	}

	return batch.NewDecoder(responseBoundary(resp.Header.Get("Content-Type")), f.logger).Decode(string(body)), nil
}

// responseBoundary returns the boundary announced by the response, or ""
// to let the decoder match any batch_ token.
func responseBoundary(contentType string) string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return ""
	}
	return params["boundary"]
}

// correlate places decoded parts next to the ids that requested them: by
// Content-ID first, then by the message id in the body, then by order.
func correlate(ids []string, decoded batch.Result, res *FetchResult, logger *slog.Logger) {
	index := make(map[string]int, 2*len(ids))
	for i, id := range ids {
		index[responseIDPrefix+requestIDPrefix+id] = i
		index[requestIDPrefix+id] = i
	}
	byMessageID := make(map[string]int, len(ids))
	for i, id := range ids {
		byMessageID[id] = i
	}

	slots := make([]*gmail.Message, len(ids))
	var unmatched []*gmail.Message

	for _, s := range decoded.Skipped {
		skipped := SkippedMessage{Reason: s.Reason}
		if i, ok := index[s.ContentID]; ok {
			skipped.ID = ids[i]
		}
		res.Skipped = append(res.Skipped, skipped)
	}

	for _, part := range decoded.Parts {
		i, known := index[part.ContentID]

		if part.Status >= 400 {
			skipped := SkippedMessage{Reason: fmt.Sprintf("status %d", part.Status)}
			if known {
				skipped.ID = ids[i]
			}
			logger.Warn("batch part returned an error", logging.Part(part.Index), slog.Int("status", part.Status), logging.MessageID(skipped.ID))
			res.Skipped = append(res.Skipped, skipped)
			continue
		}

		var msg gmail.Message
		if err := json.Unmarshal(part.Body, &msg); err != nil {
			skipped := SkippedMessage{Reason: batch.ReasonMalformed}
			if known {
				skipped.ID = ids[i]
			}
			logger.Warn("batch part is not a message", logging.Part(part.Index), logging.Err(err))
			res.Skipped = append(res.Skipped, skipped)
			continue
		}

		if !known && msg.Id != "" {
			i, known = byMessageID[msg.Id]
		}
		if known && slots[i] == nil {
			slots[i] = &msg
			continue
		}
		unmatched = append(unmatched, &msg)
	}

	for _, m := range slots {
		if m != nil {
			res.Messages = append(res.Messages, m)
		}
	}
	res.Messages = append(res.Messages, unmatched...)
}

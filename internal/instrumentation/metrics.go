package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrReason    = "reason"
	attrTool      = "tool"
	attrDomain    = "sender_domain"
)

// Metrics provides methods for recording observability metrics.
// A nil *Metrics, or one built without a meter, records nothing.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// Batch codec metrics
	batchPartsTotal metric.Int64Counter
	batchSize       metric.Int64Histogram

	// Search pipeline metrics
	searchTotal         metric.Int64Counter
	searchDuration      metric.Float64Histogram
	searchResults       metric.Int64Histogram
	searchExcludedTotal metric.Int64Counter
	attachmentsTotal    metric.Int64Counter

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.batchPartsTotal, err = meter.Int64Counter(
		"batch_response_parts_total",
		metric.WithDescription("Batch response parts by decode result"),
		metric.WithUnit("{part}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch_response_parts_total counter: %w", err)
	}

	m.batchSize, err = meter.Int64Histogram(
		"batch_request_size",
		metric.WithDescription("Number of sub-requests per outgoing batch envelope"),
		metric.WithUnit("{request}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 5, 10, 25, 50, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch_request_size histogram: %w", err)
	}

	m.searchTotal, err = meter.Int64Counter(
		"search_requests_total",
		metric.WithDescription("Total number of attachment searches"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search_requests_total counter: %w", err)
	}

	m.searchDuration, err = meter.Float64Histogram(
		"search_duration_seconds",
		metric.WithDescription("Attachment search duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search_duration_seconds histogram: %w", err)
	}

	m.searchResults, err = meter.Int64Histogram(
		"search_results",
		metric.WithDescription("Number of emails returned per search page"),
		metric.WithUnit("{email}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search_results histogram: %w", err)
	}

	m.searchExcludedTotal, err = meter.Int64Counter(
		"search_excluded_messages_total",
		metric.WithDescription("Messages dropped from a search page because enrichment failed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search_excluded_messages_total counter: %w", err)
	}

	m.attachmentsTotal, err = meter.Int64Counter(
		"search_attachments_total",
		metric.WithDescription("Attachments returned by searches"),
		metric.WithUnit("{attachment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search_attachments_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, route, status code, and duration.
// The path is normalized with NormalizePath.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, NormalizePath(path)),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGoogleAPIOperation records a Google API operation with service, operation,
// status, and duration.
//
// Parameters:
//   - service: Google service name (gmail, oauth)
//   - operation: Operation type (list, batch_get, get_message, get_attachment, exchange)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordBatch records one batch round trip: the number of sub-requests sent
// and how many response parts were decoded or skipped.
func (m *Metrics) RecordBatch(ctx context.Context, sent, decoded, skipped int) {
	if m == nil || m.batchPartsTotal == nil || m.batchSize == nil {
		return // Instrumentation not initialized
	}

	m.batchSize.Record(ctx, int64(sent))
	if decoded > 0 {
		m.batchPartsTotal.Add(ctx, int64(decoded), metric.WithAttributes(attribute.String(attrResult, PartDecoded)))
	}
	if skipped > 0 {
		m.batchPartsTotal.Add(ctx, int64(skipped), metric.WithAttributes(attribute.String(attrResult, PartSkipped)))
	}
}

// RecordSearch records a completed search page.
func (m *Metrics) RecordSearch(ctx context.Context, status string, emails int, duration time.Duration) {
	if m == nil || m.searchTotal == nil || m.searchDuration == nil || m.searchResults == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	m.searchTotal.Add(ctx, 1, attrs)
	m.searchDuration.Record(ctx, duration.Seconds(), attrs)
	if status == StatusSuccess {
		m.searchResults.Record(ctx, int64(emails))
	}
}

// RecordSearchExcluded records a message dropped from a page with the reason.
func (m *Metrics) RecordSearchExcluded(ctx context.Context, reason string) {
	if m == nil || m.searchExcludedTotal == nil {
		return // Instrumentation not initialized
	}

	m.searchExcludedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordAttachments records attachments returned for one message. The
// sender domain is only attached when detailed labels are enabled.
func (m *Metrics) RecordAttachments(ctx context.Context, count int, senderEmail string) {
	if m == nil || m.attachmentsTotal == nil || count == 0 {
		return // Instrumentation not initialized
	}

	var attrs []attribute.KeyValue
	if m.detailedLabels {
		attrs = append(attrs, attribute.String(attrDomain, SenderDomain(senderEmail)))
	}

	m.attachmentsTotal.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
//
// Parameters:
//   - toolName: Name of the MCP tool (e.g., "gmail_search_attachments")
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the tool execution
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// Package instrumentation provides OpenTelemetry instrumentation for attachfinder.
//
// Observability is provided through:
//   - OpenTelemetry metrics for HTTP requests, Google API calls, the batch codec, and searches
//   - Distributed tracing for Google API calls and MCP tool invocations
//   - Prometheus metrics export via /metrics on a dedicated port
//   - OTLP export support
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, route, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// Batch Metrics:
//   - batch_request_size: Histogram of sub-requests per envelope
//   - batch_response_parts_total: Counter of response parts by result (decoded, skipped)
//
// Search Metrics:
//   - search_requests_total, search_duration_seconds: searches by status
//   - search_results: Histogram of emails per page
//   - search_excluded_messages_total: Messages dropped by reason
//   - search_attachments_total: Attachments returned
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds
//
// # Configuration
//
// Instrumentation is configured through environment variables:
//
//	INSTRUMENTATION_ENABLED=true         # default: true
//	METRICS_EXPORTER=prometheus          # prometheus, otlp, stdout
//	METRICS_NAMESPACE=                   # optional metric name prefix
//	TRACING_EXPORTER=none                # otlp, stdout, none
//	OTEL_EXPORTER_OTLP_ENDPOINT=host:4318
//	OTEL_TRACES_SAMPLER_ARG=0.1
//	METRICS_DETAILED_LABELS=false        # adds sender_domain labels
//
// # Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordSearch(ctx, instrumentation.StatusSuccess, 3, elapsed)
package instrumentation

// Package observability provides logging and metrics support for the paper
// feed service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for feed requests, sources, the feed cache,
//     background jobs, and LLM calls
//   - Context helpers for propagating request identity
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("request_id", reqID).Msg("feed requested")
//
// Add request context to a logger:
//
//	logger = observability.WithRequestLogContext(logger, requestID, userID)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("paper_feed")
//
// Record metrics:
//
//	metrics.RecordFeedRequest("feed", "ok", elapsed.Seconds())
//	metrics.RecordSourceFetch("openalex", 42, elapsed.Seconds())
//	metrics.RecordCacheAppended(17)
//
// # Context Helpers
//
// Store and retrieve request identity:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithUserID(ctx, userID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	userID := observability.UserIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - user_id: Requesting user (or the anonymous sentinel)
//   - query_key: Canonical feed query identifier
//   - source: Paper source (openalex, semantic_scholar, biorxiv)
//   - paper_id: Qualified paper identifier
//   - job: Background job name
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability

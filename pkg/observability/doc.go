// Package observability provides structured JSON logging and Prometheus
// metrics for the gatehouse permission core.
package observability

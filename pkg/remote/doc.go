// Package remote is the client side of the persisted record store.
//
// The remote store keeps saved layer snapshots ("records") and lists them,
// grouped by layer, at GET /api/dag-data. [Client.FetchRecords] performs
// that query; the sync engine then picks the newest record with Mermaid
// content per layer via [Latest].
//
// # Content Extraction
//
// Producers have written records in several shapes over time. The Mermaid
// text is looked up at three paths in order, see [Record.MermaidSource].
//
// # Transport
//
// Requests carry the caller's context. Transient failures (connection errors,
// 5xx responses) are retried with exponential backoff through
// [httputil.Retry]. Repeated failures open a circuit breaker, after which
// calls fail immediately with CIRCUIT_OPEN until the breaker half-opens.
package remote

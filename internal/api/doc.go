// Package api implements the JSON HTTP surface of the RAG chat service.
//
// Routes are registered on a net/http ServeMux with method+path
// patterns and wrapped in a middleware chain (recovery, request
// logging, CORS, per-IP rate limiting). Health probes bypass the chain
// so orchestrators are never rate limited away from them.
//
// The API is the fragmentation subsystem's only consumer-facing
// boundary: message listings come back reassembled, continuation
// records never appear on the wire, and a payload whose fragments were
// lost surfaces as a generic content-unavailable state rather than a
// truncated body.
package api

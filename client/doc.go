// Package client implements the HTTP side of batch ingestion: job
// submission against the bulk-import endpoints, adaptive job-status
// polling, structured error retrieval, and file attachment uploads.
// Authentication is the caller's concern; the client accepts a
// pre-configured http.Client and static headers.
package client

// Package batch implements the batch ingestion engine: a two-tier
// deduplicating entity store keyed by xid, an association-aware chunk
// assembler, and the orchestration loop that submits chunks through
// the client package and uploads file attachments.
package batch

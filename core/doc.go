// Package core defines the threat-intel entity model: Groups,
// Indicators, and their Attributes, Tags, Security Labels, Associations
// and file attachments. Entities are identified by an xid (external id)
// and serialize to the camelCase wire shape expected by the bulk-import
// API.
package core

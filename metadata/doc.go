// Package metadata implements the write and read paths of the metadata
// tables: schema validation, the idempotent batch merge and paginated queries.
package metadata

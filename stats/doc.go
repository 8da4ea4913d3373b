// Package stats builds the aggregated dashboard snapshot served at /stats.
package stats

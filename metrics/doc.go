// Package metrics defines the gateway's Prometheus collectors and the
// server that exposes them.
package metrics

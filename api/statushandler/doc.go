// Package statushandler serves the read-through and pass-through endpoints
// backed by external collaborators: chain head, dashboard statistics and
// transaction broadcast. None of them touch the metadata tables directly.
package statushandler

/*
Package api holds the HTTP surface of the metadata gateway.

Subpackages:

 1. metadatahandler - signed reads and batch updates of metadata tables, plus a
    signing client
 2. statushandler - chain head, dashboard statistics and transaction broadcast
 3. servers - HTTP server lifecycle, routing, request logging and probes

This package itself defines the wire types shared by handlers and clients.
Every error response is a JSON ErrorResponse; authorization failures are always
reported as a bare "unauthorized" regardless of the underlying reason.
*/
package api

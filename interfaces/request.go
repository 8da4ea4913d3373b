package interfaces

import (
	"net/url"
	"time"
)

// Headers carrying the signed-request triple.
const (
	SignerIDHeader  = "X-Metadata-Signer"
	SignatureHeader = "X-Metadata-Signature"
	TimestampHeader = "X-Metadata-Timestamp"
)

// SignedRequest is an inbound request reduced to what authorization needs.
// Body holds the exact bytes received; it is empty for reads. Query carries
// the URL parameters, which are signed too.
type SignedRequest struct {
	SignerID  string
	Signature []byte
	Timestamp time.Time
	Query     url.Values
	Body      []byte
}

package cryptoutils

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// SigningDomain prefixes every signing payload so signatures cannot be
// replayed against other protocols using the same keys.
const SigningDomain = "indexer-metadata/v1"

// SigningPayload builds the exact bytes a signer signs for a request:
//
//	domain \n signerID \n unix-seconds \n table \n canonical(query) \n canonical(body)
//
// Reads have an empty body, so a read signature covers signer, timestamp,
// table and its pagination query.
func SigningPayload(signerID string, timestamp time.Time, table string, query url.Values, body []byte) ([]byte, error) {
	var canonical []byte
	if len(bytes.TrimSpace(body)) > 0 {
		var err error
		canonical, err = CanonicalizeJSON(body)
		if err != nil {
			return nil, fmt.Errorf("could not canonicalize body: %w", err)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(SigningDomain)
	buf.WriteByte('\n')
	buf.WriteString(signerID)
	buf.WriteByte('\n')
	buf.WriteString(strconv.FormatInt(timestamp.Unix(), 10))
	buf.WriteByte('\n')
	buf.WriteString(table)
	buf.WriteByte('\n')
	buf.WriteString(CanonicalQuery(query))
	buf.WriteByte('\n')
	buf.Write(canonical)
	return buf.Bytes(), nil
}

// CanonicalQuery renders query parameters sorted by name. Parameters without
// a value are kept, so "?limit" and "?limit=" sign the same way.
func CanonicalQuery(query url.Values) string {
	return query.Encode()
}

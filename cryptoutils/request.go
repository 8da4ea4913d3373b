package cryptoutils

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

// SignHTTPRequest signs body and the URL query of req for table and sets the
// signed-request headers on req. The caller is responsible for sending exactly
// body.
func SignHTTPRequest(req *http.Request, s Signer, table interfaces.Table, body []byte, now time.Time) error {
	payload, err := SigningPayload(s.SignerID(), now, table.String(), req.URL.Query(), body)
	if err != nil {
		return err
	}

	sig, err := s.Sign(payload)
	if err != nil {
		return err
	}

	req.Header.Set(interfaces.SignerIDHeader, s.SignerID())
	req.Header.Set(interfaces.SignatureHeader, EncodeSignature(sig))
	req.Header.Set(interfaces.TimestampHeader, strconv.FormatInt(now.Unix(), 10))
	return nil
}

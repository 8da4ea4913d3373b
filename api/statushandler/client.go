package statushandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/indexer-metadata-gateway/api"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

// Head fetches the chain head reported by a gateway at baseURL.
func Head(ctx context.Context, baseURL string) (*interfaces.ChainState, error) {
	var state interfaces.ChainState
	if err := getJSON(ctx, strings.TrimRight(baseURL, "/")+"/head", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Stats fetches the dashboard snapshot.
func Stats(ctx context.Context, baseURL string) (*interfaces.StatsSnapshot, error) {
	var snap interfaces.StatsSnapshot
	if err := getJSON(ctx, strings.TrimRight(baseURL, "/")+"/stats", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Broadcast submits a signed transaction and returns its hash.
func Broadcast(ctx context.Context, baseURL string, signedTx []byte) (string, error) {
	body, err := json.Marshal(api.BroadcastRequest{Tx: hexutil.Encode(signedTx)})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/tx/broadcast", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out api.BroadcastResponse
	if err := doJSON(req, &out); err != nil {
		return "", err
	}
	return out.Hash, nil
}

func getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}
	return doJSON(req, out)
}

func doJSON(req *http.Request, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp api.ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}

package metadatahandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/indexer-metadata-gateway/api"
	"github.com/ruteri/indexer-metadata-gateway/cryptoutils"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
	"github.com/ruteri/indexer-metadata-gateway/keyregistry"
	"github.com/ruteri/indexer-metadata-gateway/metadata"
	"github.com/ruteri/indexer-metadata-gateway/storage"
	"github.com/ruteri/indexer-metadata-gateway/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUpdater struct {
	mock.Mock
}

func (m *mockUpdater) Update(ctx context.Context, table interfaces.Table, batch []interfaces.MetadataRecord) (int, error) {
	args := m.Called(ctx, table, batch)
	return args.Int(0), args.Error(1)
}

type testEnv struct {
	server *httptest.Server
	store  *storage.MemoryStore
	signer cryptoutils.Signer
	client *Client
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv wires the real verifier, merger and query over a memory store.
// The signer may access Software only. A non-nil updater replaces the merger.
func newTestEnv(t *testing.T, maxBody int64, updater Updater) *testEnv {
	log := testLogger()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := &cryptoutils.Secp256k1Signer{ID: "maintainer", Key: key}
	pub, err := cryptoutils.PublicKeyString(signer)
	require.NoError(t, err)

	registry := keyregistry.New(log)
	require.NoError(t, registry.Reload(&keyregistry.Config{Signers: []keyregistry.SignerConfig{
		{ID: "maintainer", Algorithm: "secp256k1", PublicKey: pub, Tables: []string{"Software"}},
	}}))

	store := storage.NewMemoryStore(log)
	if updater == nil {
		updater = metadata.NewMerger(store, log)
	}

	handler := NewHandler(verifier.New(registry, nil, log), updater, metadata.NewQuery(store), nil, maxBody, log)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{
		server: server,
		store:  store,
		signer: signer,
		client: NewClient(server.URL, signer),
	}
}

func (e *testEnv) signedRequest(t *testing.T, method, path string, table interfaces.Table, body []byte) *http.Request {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	require.NoError(t, cryptoutils.SignHTTPRequest(req, e.signer, table, body, time.Now()))
	return req
}

func readError(t *testing.T, resp *http.Response) api.ErrorResponse {
	t.Helper()
	defer resp.Body.Close()
	var out api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestUpdateAndGetRoundTrip(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	ctx := context.Background()

	err := env.client.UpdateRaw(ctx, interfaces.SoftwareTable,
		[]byte(`[{"ShortHash":"abc123","version":"v1.2.0"},{"ShortHash":"def456","tags":["beta"]}]`))
	require.NoError(t, err)

	// Second batch touches one existing record and keeps its other fields.
	err = env.client.Update(ctx, interfaces.SoftwareTable, []interfaces.MetadataRecord{
		{Key: "abc123", Fields: interfaces.Fields{"notes": json.RawMessage(`"hotfix"`)}},
	})
	require.NoError(t, err)

	records, err := env.client.Get(ctx, interfaces.SoftwareTable, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "abc123", records[0].Key)
	assert.JSONEq(t, `"v1.2.0"`, string(records[0].Fields["version"]))
	assert.JSONEq(t, `"hotfix"`, string(records[0].Fields["notes"]))
	assert.Equal(t, "def456", records[1].Key)

	page, err := env.client.Get(ctx, interfaces.SoftwareTable, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "def456", page[0].Key)

	empty, err := env.client.Get(ctx, interfaces.SoftwareTable, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateResponseBody(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	body := []byte(`[{"ShortHash":"abc123","version":"v1.2.0"}]`)

	resp, err := http.DefaultClient.Do(env.signedRequest(t, http.MethodPost, "/metadata/software/update", interfaces.SoftwareTable, body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(respBody))
}

func TestUnauthorizedIsGeneric(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	body := []byte(`[{"Hash":"PtA","alias":"A"}]`)

	requests := map[string]*http.Request{}

	// Signer is not allowed to touch Protocols.
	requests["forbidden"] = env.signedRequest(t, http.MethodPost, "/metadata/protocols/update", interfaces.ProtocolsTable, body)

	noHeaders, err := http.NewRequest(http.MethodPost, env.server.URL+"/metadata/software/update", bytes.NewReader(body))
	require.NoError(t, err)
	requests["missing credentials"] = noHeaders

	tampered := env.signedRequest(t, http.MethodPost, "/metadata/software/update", interfaces.SoftwareTable, []byte(`[{"ShortHash":"a"}]`))
	tampered.Body = io.NopCloser(strings.NewReader(`[{"ShortHash":"b"}]`))
	tampered.ContentLength = int64(len(`[{"ShortHash":"b"}]`))
	requests["tampered body"] = tampered

	unknown := env.signedRequest(t, http.MethodGet, "/metadata/software", interfaces.SoftwareTable, nil)
	unknown.Header.Set(interfaces.SignerIDHeader, "someone-else")
	requests["unknown signer"] = unknown

	stale, err := http.NewRequest(http.MethodGet, env.server.URL+"/metadata/software", nil)
	require.NoError(t, err)
	require.NoError(t, cryptoutils.SignHTTPRequest(stale, env.signer, interfaces.SoftwareTable, nil, time.Now().Add(-time.Hour)))
	requests["stale"] = stale

	for name, req := range requests {
		t.Run(name, func(t *testing.T) {
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			respBody, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.JSONEq(t, `{"message":"unauthorized"}`, string(respBody))
		})
	}

	for _, table := range interfaces.AllTables {
		n, err := env.store.Count(context.Background(), table)
		require.NoError(t, err)
		assert.Zero(t, n, table.String())
	}
}

func TestReadPaginationIsSigned(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	require.NoError(t, env.client.UpdateRaw(context.Background(), interfaces.SoftwareTable,
		[]byte(`[{"ShortHash":"a"},{"ShortHash":"b"},{"ShortHash":"c"}]`)))

	signed := env.signedRequest(t, http.MethodGet, "/metadata/software?offset=0&limit=1", interfaces.SoftwareTable, nil)
	resp, err := http.DefaultClient.Do(signed)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	widened, err := http.NewRequest(http.MethodGet, env.server.URL+"/metadata/software?offset=0&limit=0", nil)
	require.NoError(t, err)
	widened.Header = signed.Header.Clone()

	resp, err = http.DefaultClient.Do(widened)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, api.MessageUnauthorized, readError(t, resp).Message)
}

func TestReplayedRequestRejected(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	body := []byte(`[{"ShortHash":"abc123","version":"v1"}]`)
	first := env.signedRequest(t, http.MethodPost, "/metadata/software/update", interfaces.SoftwareTable, body)

	replay, err := http.NewRequest(http.MethodPost, first.URL.String(), bytes.NewReader(body))
	require.NoError(t, err)
	replay.Header = first.Header.Clone()

	resp, err := http.DefaultClient.Do(first)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.DefaultClient.Do(replay)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSchemaViolationNamesKeyAndField(t *testing.T) {
	env := newTestEnv(t, 0, nil)

	err := env.client.UpdateRaw(context.Background(), interfaces.SoftwareTable,
		[]byte(`[{"ShortHash":"abc123","version":"v1"},{"ShortHash":"def456","firstLevel":-4}]`))
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "def456", statusErr.Key)
	assert.Equal(t, "firstLevel", statusErr.Field)
	assert.False(t, statusErr.Retryable())

	n, err := env.store.Count(context.Background(), interfaces.SoftwareTable)
	require.NoError(t, err)
	assert.Zero(t, n, "rejected batch must not be partially applied")
}

func TestDuplicateAndMalformed(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	ctx := context.Background()

	err := env.client.UpdateRaw(ctx, interfaces.SoftwareTable, []byte(`[{"ShortHash":"a"},{"ShortHash":"a"}]`))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "a", statusErr.Key)

	err = env.client.UpdateRaw(ctx, interfaces.SoftwareTable, []byte(`[{"version":"v1"}]`))
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "ShortHash", statusErr.Field)

	err = env.client.UpdateRaw(ctx, interfaces.SoftwareTable, []byte(`{"ShortHash":"a"}`))
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}

func TestEmptyBatch(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	require.NoError(t, env.client.UpdateRaw(context.Background(), interfaces.SoftwareTable, []byte(`[]`)))
}

func TestStoreUnavailable(t *testing.T) {
	updater := &mockUpdater{}
	updater.On("Update", mock.Anything, interfaces.SoftwareTable, mock.Anything).
		Return(0, &interfaces.MergeError{Kind: interfaces.ErrStoreConflict, Key: "abc123", Err: errors.New("deadlock detected")})
	env := newTestEnv(t, 0, updater)

	err := env.client.UpdateRaw(context.Background(), interfaces.SoftwareTable, []byte(`[{"ShortHash":"abc123"}]`))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, api.MessageStoreUnavailable, statusErr.Message)
	assert.True(t, statusErr.Retryable())
}

func TestStoreFailureCanBeRetriedWithSameRequest(t *testing.T) {
	updater := &mockUpdater{}
	updater.On("Update", mock.Anything, interfaces.SoftwareTable, mock.Anything).
		Return(0, &interfaces.MergeError{Kind: interfaces.ErrStoreUnavailable, Err: errors.New("connection reset")}).Once()
	updater.On("Update", mock.Anything, interfaces.SoftwareTable, mock.Anything).Return(1, nil).Once()
	env := newTestEnv(t, 0, updater)

	body := []byte(`[{"ShortHash":"abc123","version":"v1"}]`)
	first := env.signedRequest(t, http.MethodPost, "/metadata/software/update", interfaces.SoftwareTable, body)
	retry, err := http.NewRequest(http.MethodPost, first.URL.String(), bytes.NewReader(body))
	require.NoError(t, err)
	retry.Header = first.Header.Clone()
	again, err := http.NewRequest(http.MethodPost, first.URL.String(), bytes.NewReader(body))
	require.NoError(t, err)
	again.Header = first.Header.Clone()

	resp, err := http.DefaultClient.Do(first)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.Equal(t, api.MessageStoreUnavailable, readError(t, resp).Message)

	resp, err = http.DefaultClient.Do(retry)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Once applied, the request is spent.
	resp, err = http.DefaultClient.Do(again)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	updater.AssertNumberOfCalls(t, "Update", 2)
}

func TestNullBatchRejected(t *testing.T) {
	updater := &mockUpdater{}
	env := newTestEnv(t, 0, updater)

	for _, body := range []string{`null`, ` null `, `{}`, `"x"`} {
		err := env.client.UpdateRaw(context.Background(), interfaces.SoftwareTable, []byte(body))
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr, body)
		assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode, body)
	}
	updater.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestClientUpdateDoesNotModifyRecords(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	records := []interfaces.MetadataRecord{
		{Key: "abc123", Fields: interfaces.Fields{"version": json.RawMessage(`"v1"`)}},
	}

	require.NoError(t, env.client.Update(context.Background(), interfaces.SoftwareTable, records))
	assert.Equal(t, interfaces.Table(""), records[0].Table)

	stored, err := env.client.Get(context.Background(), interfaces.SoftwareTable, 0, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "abc123", stored[0].Key)
}

func TestUnexpectedUpdateError(t *testing.T) {
	updater := &mockUpdater{}
	updater.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(0, errors.New("boom"))
	env := newTestEnv(t, 0, updater)

	err := env.client.UpdateRaw(context.Background(), interfaces.SoftwareTable, []byte(`[{"ShortHash":"abc123"}]`))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, api.MessageInternal, statusErr.Message)
}

func TestBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, 64, nil)
	body := []byte(fmt.Sprintf(`[{"ShortHash":"abc123","notes":%q}]`, strings.Repeat("x", 128)))

	resp, err := http.DefaultClient.Do(env.signedRequest(t, http.MethodPost, "/metadata/software/update", interfaces.SoftwareTable, body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, api.MessageBodyTooLarge, readError(t, resp).Message)
}

func TestUnknownTable(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	resp, err := http.Get(env.server.URL + "/metadata/bakers")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, api.MessageUnknownTable, readError(t, resp).Message)
}

func TestInvalidRange(t *testing.T) {
	env := newTestEnv(t, 0, nil)

	for _, query := range []string{"?limit=-1", "?offset=-5&limit=1", "?limit=ten"} {
		req := env.signedRequest(t, http.MethodGet, "/metadata/software"+query, interfaces.SoftwareTable, nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		assert.Equal(t, interfaces.ErrInvalidRange.Error(), readError(t, resp).Message)
	}
}

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/rpc"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyropy/qrxfer/core/codec"
	"github.com/pyropy/qrxfer/core/collector"
	"github.com/pyropy/qrxfer/core/reconcile"
	"github.com/pyropy/qrxfer/core/splitter"
	collectorRPC "github.com/pyropy/qrxfer/rpc/collector"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := collector.NewLevelStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := collector.New(collector.Options{Store: store, SaveDir: "./qr_chunks"})

	rpcServer, err := collectorRPC.NewServer(c)
	require.NoError(t, err)

	return NewServer(c, rpcServer, "./qr_chunks")
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	return w
}

func saveBody(t *testing.T, content string, index int) string {
	t.Helper()

	b, err := json.Marshal(saveChunkRequest{ChunkIndex: index, Content: content, FileName: "scan", Session: "web"})
	require.NoError(t, err)

	return string(b)
}

func TestSaveChunkAndStats(t *testing.T) {
	s := newTestServer(t)

	records, err := splitter.Split([]byte("posted from a browser"), "web.txt", 8)
	require.NoError(t, err)

	for _, r := range records {
		text, err := codec.Encode(r)
		require.NoError(t, err)

		w := do(t, s, http.MethodPost, "/save-chunk", saveBody(t, text, r.Index))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp saveChunkResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.True(t, resp.Valid)
		assert.Equal(t, collector.ChunkName("web.txt", r.Index), resp.Saved)
	}

	w := do(t, s, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats statsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.True(t, stats.Success)
	assert.Equal(t, len(records), stats.ChunksCount)
	assert.Equal(t, "./qr_chunks", stats.SaveDir)

	w = do(t, s, http.MethodGet, "/report", "")
	require.Equal(t, http.StatusOK, w.Code)

	var report reconcile.Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	require.Len(t, report.Files, 1)
	assert.True(t, report.Files[0].Complete)

	w = do(t, s, http.MethodGet, "/report?file=web.txt", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/report?file=nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveChunk_BadRequests(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/save-chunk", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)

	w = do(t, s, http.MethodPost, "/save-chunk", saveBody(t, "", 0))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClear(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/save-chunk", saveBody(t, "f|~|0|~|1|~|QQ==", 0))
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodPost, "/clear", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(1), resp["cleared"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodOptions, "/save-chunk", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")

	w = do(t, s, http.MethodGet, "/stats", "")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestIndexAndNotFound(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "QR Code Chunk Server")
	assert.Contains(t, w.Body.String(), "./qr_chunks")

	w = do(t, s, http.MethodGet, "/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRPCOverSameListener(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	client, err := rpc.DialHTTP("tcp", srv.Listener.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var reply collectorRPC.StatsReply
	require.NoError(t, client.Call(collectorRPC.Service+".Stats", &collectorRPC.StatsArgs{}, &reply))
	assert.Zero(t, reply.ChunksCount)
}

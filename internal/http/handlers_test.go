package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/gin-gonic/gin"
	"github.com/ochronus/goseedr/internal/services/seedr"
	"github.com/ochronus/goseedr/internal/services/seedr/seedrtest"
	"github.com/ochronus/goseedr/internal/services/transmission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bunnyMagnet = "magnet:?xt=urn:btih:dd8255ecdc7ca55fb0bbf81323d87062db1f6d1c&dn=Big+Buck+Bunny"

func setupTestHandler(client *seedrtest.Mock) *Handler {
	return NewHandler(setupTestContainer(client))
}

func setupTestRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.POST("/transmission/rpc", handler.RPCPost)
	router.GET("/transmission/rpc", handler.RPCGet)
	return router
}

func basicAuthHeader(username, password string) string {
	auth := username + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(auth))
}

func postRPC(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/transmission/rpc", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", basicAuthHeader("testuser", "testpass"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, args any) transmission.Response {
	t.Helper()
	var raw struct {
		Result    string          `json:"result"`
		Arguments json.RawMessage `json:"arguments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	if args != nil {
		require.NoError(t, json.Unmarshal(raw.Arguments, args))
	}
	return transmission.Response{Result: raw.Result}
}

func testTorrentFile(t *testing.T, name string) []byte {
	t.Helper()
	info := metainfo.Info{
		Name:        name,
		PieceLength: 16384,
		Pieces:      make([]byte, 20),
		Length:      5,
	}
	infoBytes, err := bencode.Marshal(info)
	require.NoError(t, err)

	mi := metainfo.MetaInfo{InfoBytes: infoBytes, Announce: "http://tracker.example/announce"}
	var buf bytes.Buffer
	require.NoError(t, mi.Write(&buf))
	return buf.Bytes()
}

func strPtr(s string) *string { return &s }

func TestNewHandler(t *testing.T) {
	handler := setupTestHandler(nil)

	require.NotNil(t, handler)
	assert.NotNil(t, handler.config)
	assert.NotNil(t, handler.seedrClient)
	assert.NotNil(t, handler.logger)
	assert.Len(t, handler.sessionID, 36, "session id should be a UUID")
	assert.NotEqual(t, handler.sessionID, setupTestHandler(nil).sessionID)
}

func TestValidateUser(t *testing.T) {
	handler := setupTestHandler(nil)

	tests := []struct {
		name     string
		auth     string
		expected bool
	}{
		{"valid credentials", basicAuthHeader("testuser", "testpass"), true},
		{"invalid username", basicAuthHeader("wronguser", "testpass"), false},
		{"invalid password", basicAuthHeader("testuser", "wrongpass"), false},
		{"seedr credentials are not bridge credentials", basicAuthHeader("user@example.com", "secret"), false},
		{"empty auth header", "", false},
		{"invalid auth format", "NotBasic abc123", false},
		{"invalid base64", "Basic !!!invalid!!!", false},
		{"missing colon in decoded", "Basic " + base64.StdEncoding.EncodeToString([]byte("nocolon")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.auth != "" {
				c.Request.Header.Set("Authorization", tt.auth)
			}

			assert.Equal(t, tt.expected, handler.validateUser(c))
		})
	}
}

func TestRPCGet(t *testing.T) {
	handler := setupTestHandler(nil)
	router := setupTestRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/transmission/rpc", nil)
	req.Header.Set("Authorization", basicAuthHeader("testuser", "testpass"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, handler.sessionID, w.Header().Get("X-Transmission-Session-Id"))

	req = httptest.NewRequest(http.MethodGet, "/transmission/rpc", nil)
	req.Header.Set("Authorization", basicAuthHeader("wrong", "creds"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("X-Transmission-Session-Id"))
}

func TestRPCPostNoAuth(t *testing.T) {
	handler := setupTestHandler(nil)
	router := setupTestRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/transmission/rpc", bytes.NewBufferString(`{"method": "session-get"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, handler.sessionID, w.Header().Get("X-Transmission-Session-Id"))
}

func TestRPCPostBadRequests(t *testing.T) {
	router := setupTestRouter(setupTestHandler(nil))

	tests := map[string]string{
		"invalid json":   `{"method":`,
		"missing method": `{"arguments": {}}`,
		"unknown method": `{"method": "blocklist-update"}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := postRPC(t, router, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRPCPostSessionGet(t *testing.T) {
	router := setupTestRouter(setupTestHandler(nil))

	w := postRPC(t, router, `{"method": "session-get"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var session transmission.Config
	resp := decodeResponse(t, w, &session)
	assert.Equal(t, "success", resp.Result)
	assert.Equal(t, "/downloads", session.DownloadDir)
	assert.Equal(t, "18", session.RPCVersion)
}

func TestRPCPostNoOps(t *testing.T) {
	mock := &seedrtest.Mock{}
	router := setupTestRouter(setupTestHandler(mock))

	for _, method := range []string{"torrent-set", "queue-move-top"} {
		w := postRPC(t, router, `{"method": "`+method+`", "arguments": {"ids": [1]}}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "success", decodeResponse(t, w, nil).Result)
	}
	assert.Empty(t, mock.CallLog())
}

func TestRPCPostTorrentGet(t *testing.T) {
	filesCount := 2
	mock := &seedrtest.Mock{
		ListRootFolderFunc: func(context.Context) (*seedr.FolderContent, error) {
			return &seedr.FolderContent{
				Torrents: []seedr.Transfer{
					{ID: 31, Name: "Big Buck Bunny", Size: 1000, Progress: json.RawMessage(`"40"`), Hash: strPtr("dd8255ecdc7ca55fb0bbf81323d87062db1f6d1c")},
				},
				Folders: []seedr.FolderItem{
					{ID: 11, Name: "Linux ISOs", Size: 4096, FilesCount: &filesCount},
				},
			}, nil
		},
	}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-get", "arguments": {"fields": ["id", "name"]}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got transmission.TorrentGetResponse
	resp := decodeResponse(t, w, &got)
	assert.Equal(t, "success", resp.Result)
	require.Len(t, got.Torrents, 2)

	downloading := got.Torrents[0]
	assert.Equal(t, int64(31), downloading.ID)
	assert.Equal(t, transmission.StatusDownloading, downloading.Status)
	assert.False(t, downloading.IsFinished)
	assert.Equal(t, int64(600), downloading.LeftUntilDone)
	assert.Equal(t, "/downloads", downloading.DownloadDir)

	finished := got.Torrents[1]
	assert.Equal(t, transmission.FolderIDOffset+11, finished.ID)
	assert.NotEqual(t, downloading.ID, finished.ID)
	require.NotNil(t, finished.HashString)
	assert.Equal(t, "seedr-folder-11", *finished.HashString)
	assert.True(t, finished.IsFinished)
	assert.Equal(t, transmission.StatusStopped, finished.Status)
	assert.Equal(t, uint32(2), finished.FileCount)
}

func TestRPCPostTorrentGetEmpty(t *testing.T) {
	router := setupTestRouter(setupTestHandler(&seedrtest.Mock{}))

	w := postRPC(t, router, `{"method": "torrent-get"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"torrents":[]`)
}

func TestRPCPostTorrentGetSeedrUnavailable(t *testing.T) {
	mock := &seedrtest.Mock{
		ListRootFolderFunc: func(context.Context) (*seedr.FolderContent, error) {
			return nil, &seedr.Error{Kind: seedr.KindTransport, Method: "GET", Endpoint: "folder", Err: io.ErrUnexpectedEOF}
		},
	}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-get"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "transport error")
}

func TestRPCPostTorrentAddMagnet(t *testing.T) {
	var gotMagnet string
	mock := &seedrtest.Mock{
		AddMagnetFunc: func(_ context.Context, magnet string) (*seedr.APIResult, error) {
			gotMagnet = magnet
			id := int64(77)
			return &seedr.APIResult{Result: true, UserTorrentID: &id}, nil
		},
	}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-add", "arguments": {"filename": "`+bunnyMagnet+`"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var added transmission.TorrentAddedResponse
	resp := decodeResponse(t, w, &added)
	assert.Equal(t, "success", resp.Result)
	assert.Equal(t, bunnyMagnet, gotMagnet)
	require.NotNil(t, added.TorrentAdded)
	assert.Equal(t, int64(77), added.TorrentAdded.ID)
	assert.Equal(t, "Big Buck Bunny", added.TorrentAdded.Name)
	assert.Equal(t, "dd8255ecdc7ca55fb0bbf81323d87062db1f6d1c", added.TorrentAdded.HashString)
}

func TestRPCPostTorrentAddInvalidMagnet(t *testing.T) {
	mock := &seedrtest.Mock{}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-add", "arguments": {"filename": "magnet:?xt=urn:btih:zz"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.CallLog())
}

func TestRPCPostTorrentAddURL(t *testing.T) {
	mock := &seedrtest.Mock{}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-add", "arguments": {"filename": "https://example.com/ubuntu.torrent"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"AddURL https://example.com/ubuntu.torrent"}, mock.CallLog())
}

func TestRPCPostTorrentAddMetainfo(t *testing.T) {
	torrent := testTorrentFile(t, "ubuntu.iso")
	var uploaded []byte
	var uploadedName string
	mock := &seedrtest.Mock{
		AddTorrentDataFunc: func(_ context.Context, name string, r io.Reader) (*seedr.APIResult, error) {
			uploadedName = name
			uploaded, _ = io.ReadAll(r)
			return &seedr.APIResult{Result: true, Title: strPtr("Ubuntu")}, nil
		},
	}
	router := setupTestRouter(setupTestHandler(mock))

	body := `{"method": "torrent-add", "arguments": {"metainfo": "` + base64.StdEncoding.EncodeToString(torrent) + `"}}`
	w := postRPC(t, router, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var added transmission.TorrentAddedResponse
	decodeResponse(t, w, &added)
	assert.Equal(t, "ubuntu.iso.torrent", uploadedName)
	assert.Equal(t, torrent, uploaded)
	require.NotNil(t, added.TorrentAdded)
	assert.Equal(t, "Ubuntu", added.TorrentAdded.Name)
	assert.Len(t, added.TorrentAdded.HashString, 40)
}

func TestRPCPostTorrentAddInvalidMetainfo(t *testing.T) {
	tests := map[string]string{
		"not base64":    "!!!",
		"not a torrent": base64.StdEncoding.EncodeToString([]byte("hello")),
	}

	for name, metainfoArg := range tests {
		t.Run(name, func(t *testing.T) {
			mock := &seedrtest.Mock{}
			router := setupTestRouter(setupTestHandler(mock))

			w := postRPC(t, router, `{"method": "torrent-add", "arguments": {"metainfo": "`+metainfoArg+`"}}`)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, mock.CallLog())
		})
	}
}

func TestRPCPostTorrentAddMissingArguments(t *testing.T) {
	router := setupTestRouter(setupTestHandler(nil))

	for _, body := range []string{
		`{"method": "torrent-add"}`,
		`{"method": "torrent-add", "arguments": {}}`,
		`{"method": "torrent-add", "arguments": {"filename": "/local/file.torrent"}}`,
	} {
		w := postRPC(t, router, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestRPCPostTorrentAddLogicalFailure(t *testing.T) {
	mock := &seedrtest.Mock{
		AddMagnetFunc: func(context.Context, string) (*seedr.APIResult, error) {
			return seedrtest.Failure(413, "not_enough_space_added_to_wishlist"), nil
		},
	}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-add", "arguments": {"filename": "`+bunnyMagnet+`"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not_enough_space_added_to_wishlist", decodeResponse(t, w, nil).Result)
}

func TestRPCPostTorrentAddLogicalFailureWithoutMessage(t *testing.T) {
	mock := &seedrtest.Mock{
		AddURLFunc: func(context.Context, string) (*seedr.APIResult, error) {
			return &seedr.APIResult{Result: false, Code: 400}, nil
		},
	}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-add", "arguments": {"filename": "http://example.com/a.torrent"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "seedr rejected the torrent (code 400)", decodeResponse(t, w, nil).Result)
}

func TestRPCPostTorrentAddSeedrUnavailable(t *testing.T) {
	mock := &seedrtest.Mock{
		AddMagnetFunc: func(context.Context, string) (*seedr.APIResult, error) {
			return nil, &seedr.Error{Kind: seedr.KindDecode, Method: "POST", Endpoint: "transfer/magnet", Err: io.ErrUnexpectedEOF}
		},
	}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-add", "arguments": {"filename": "`+bunnyMagnet+`"}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRPCPostTorrentRemove(t *testing.T) {
	mock := &seedrtest.Mock{
		ListRootFolderFunc: func(context.Context) (*seedr.FolderContent, error) {
			return &seedr.FolderContent{
				Torrents: []seedr.Transfer{
					{ID: 1, Hash: strPtr("AAAA")},
					{ID: 2, Hash: strPtr("bbbb")},
					{ID: 3},
				},
			}, nil
		},
	}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-remove", "arguments": {"ids": ["aaaa", "seedr-folder-11", "cccc"], "delete-local-data": true}}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"DeleteFolder 11", "ListRootFolder", "DeleteTransfer 1"}, mock.CallLog())
}

func TestRPCPostTorrentRemoveKeepsFolderWithoutDeleteLocalData(t *testing.T) {
	mock := &seedrtest.Mock{}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-remove", "arguments": {"ids": ["seedr-folder-11"], "delete-local-data": false}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mock.CallLog())
}

func TestRPCPostTorrentRemoveContinuesOnFailure(t *testing.T) {
	mock := &seedrtest.Mock{
		ListRootFolderFunc: func(context.Context) (*seedr.FolderContent, error) {
			return &seedr.FolderContent{
				Torrents: []seedr.Transfer{{ID: 1, Hash: strPtr("aaaa")}, {ID: 2, Hash: strPtr("bbbb")}},
			}, nil
		},
		DeleteTransferFunc: func(_ context.Context, id int64) (*seedr.APIResult, error) {
			if id == 1 {
				return seedrtest.Failure(404, "not found"), nil
			}
			return seedrtest.Success(), nil
		},
	}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-remove", "arguments": {"ids": ["aaaa", "bbbb"]}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ListRootFolder", "DeleteTransfer 1", "DeleteTransfer 2"}, mock.CallLog())
}

func TestRPCPostTorrentRemoveEmptyIDs(t *testing.T) {
	mock := &seedrtest.Mock{}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-remove", "arguments": {"ids": []}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mock.CallLog())
}

func TestRPCPostTorrentRemoveListingFails(t *testing.T) {
	mock := &seedrtest.Mock{
		ListRootFolderFunc: func(context.Context) (*seedr.FolderContent, error) {
			return nil, &seedr.Error{Kind: seedr.KindStatus, Method: "GET", Endpoint: "folder", StatusCode: 502}
		},
	}
	router := setupTestRouter(setupTestHandler(mock))

	w := postRPC(t, router, `{"method": "torrent-remove", "arguments": {"ids": ["aaaa"]}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestTorrentFileName(t *testing.T) {
	assert.Equal(t, "a.torrent", torrentFileName("a"))
	assert.Equal(t, "a.torrent", torrentFileName("a.torrent"))
	assert.Equal(t, "upload.torrent", torrentFileName(""))
}

package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ochronus/goseedr/internal/app"
	"github.com/ochronus/goseedr/internal/config"
	"github.com/ochronus/goseedr/internal/services/seedr"
	"github.com/ochronus/goseedr/internal/services/transmission"
	"github.com/sirupsen/logrus"
)

const (
	sessionHeader = "X-Transmission-Session-Id"
	rpcMethodKey  = "rpc_method"
)

// rpcError is a failure reported to the RPC client in the result field.
type rpcError struct {
	msg string
}

func (e *rpcError) Error() string { return e.msg }

// badRequestError is a malformed request that gets a 400.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return &badRequestError{err: fmt.Errorf(format, args...)}
}

// Handler contains the HTTP handlers for the Transmission RPC protocol.
type Handler struct {
	container   *app.Container
	config      *config.Config
	seedrClient seedr.ClientAPI
	logger      *logrus.Logger
	sessionID   string
}

// NewHandler creates a new HTTP handler.
func NewHandler(container *app.Container) *Handler {
	return &Handler{
		container:   container,
		config:      container.Config,
		seedrClient: container.SeedrClient,
		logger:      container.Logger,
		sessionID:   uuid.NewString(),
	}
}

// RPCPost handles POST requests to the Transmission RPC endpoint.
func (h *Handler) RPCPost(c *gin.Context) {
	if !h.validateUser(c) {
		c.Header(sessionHeader, h.sessionID)
		c.Status(http.StatusConflict)
		return
	}

	var req transmission.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.Method) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "method is required"})
		return
	}
	c.Set(rpcMethodKey, req.Method)

	ctx := c.Request.Context()
	var (
		arguments interface{}
		err       error
	)

	switch req.Method {
	case "session-get":
		arguments = transmission.DefaultConfig(h.config.Bridge.DownloadDirectory)

	case "torrent-get":
		arguments, err = h.handleTorrentGet(ctx)

	case "torrent-set", "queue-move-top":
		// Seedr has no per-torrent settings or queue order.
		arguments = nil

	case "torrent-remove":
		err = h.handleTorrentRemove(ctx, &req)

	case "torrent-add":
		arguments, err = h.handleTorrentAdd(ctx, &req)

	default:
		h.logger.Warnf("Unknown method: %s", req.Method)
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown method"})
		return
	}

	if err != nil {
		h.writeError(c, req.Method, err)
		return
	}

	c.JSON(http.StatusOK, transmission.Response{
		Result:    "success",
		Arguments: arguments,
	})
}

func (h *Handler) writeError(c *gin.Context, method string, err error) {
	var (
		rpcErr *rpcError
		badReq *badRequestError
	)
	switch {
	case errors.As(err, &rpcErr):
		h.logger.Warnf("%s rejected by Seedr: %s", method, rpcErr.msg)
		c.JSON(http.StatusOK, transmission.Response{Result: rpcErr.msg})
	case errors.As(err, &badReq):
		h.logger.Warnf("%s bad request: %v", method, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Errorf("%s error: %v", method, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// RPCGet handles GET requests to the Transmission RPC endpoint (for authentication).
func (h *Handler) RPCGet(c *gin.Context) {
	if !h.validateUser(c) {
		c.Status(http.StatusForbidden)
		return
	}

	c.Header(sessionHeader, h.sessionID)
	c.Status(http.StatusConflict)
}

// validateUser validates the Basic Auth credentials.
func (h *Handler) validateUser(c *gin.Context) bool {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return false
	}

	if !strings.HasPrefix(authHeader, "Basic ") {
		return false
	}

	encoded := strings.TrimPrefix(authHeader, "Basic ")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return false
	}

	username := parts[0]
	password := parts[1]

	return username == h.config.Bridge.Username && password == h.config.Bridge.Password
}

// handleTorrentGet lists running transfers and finished root folders.
func (h *Handler) handleTorrentGet(ctx context.Context) (*transmission.TorrentGetResponse, error) {
	content, err := h.seedrClient.ListRootFolder(ctx)
	if err != nil {
		return nil, err
	}

	downloadDir := h.config.Bridge.DownloadDirectory
	torrents := make([]*transmission.Torrent, 0, len(content.Torrents)+len(content.Folders))
	for i := range content.Torrents {
		torrents = append(torrents, transmission.TorrentFromSeedrTransfer(&content.Torrents[i], downloadDir))
	}
	for i := range content.Folders {
		torrents = append(torrents, transmission.TorrentFromSeedrFolder(&content.Folders[i], downloadDir))
	}

	return &transmission.TorrentGetResponse{
		Torrents: torrents,
	}, nil
}

// handleTorrentAdd handles the torrent-add RPC method.
func (h *Handler) handleTorrentAdd(ctx context.Context, req *transmission.Request) (*transmission.TorrentAddedResponse, error) {
	var args transmission.TorrentAddArguments
	if err := bindArguments(req, &args); err != nil {
		return nil, &badRequestError{err: err}
	}

	var (
		result *seedr.APIResult
		added  transmission.AddedTorrent
		err    error
	)

	switch {
	case args.Metainfo != "":
		data, decodeErr := base64.StdEncoding.DecodeString(args.Metainfo)
		if decodeErr != nil {
			return nil, badRequest("metainfo is not valid base64: %v", decodeErr)
		}
		mi, loadErr := metainfo.Load(bytes.NewReader(data))
		if loadErr != nil {
			return nil, badRequest("metainfo is not a valid torrent: %v", loadErr)
		}
		info, infoErr := mi.UnmarshalInfo()
		if infoErr != nil {
			return nil, badRequest("metainfo has an invalid info dictionary: %v", infoErr)
		}
		added.Name = info.Name
		added.HashString = mi.HashInfoBytes().HexString()
		result, err = h.seedrClient.AddTorrentData(ctx, torrentFileName(info.Name), bytes.NewReader(data))

	case strings.HasPrefix(args.Filename, "magnet:"):
		magnet, parseErr := metainfo.ParseMagnetUri(args.Filename)
		if parseErr != nil {
			return nil, badRequest("invalid magnet link: %v", parseErr)
		}
		added.Name = magnet.DisplayName
		added.HashString = magnet.InfoHash.HexString()
		result, err = h.seedrClient.AddMagnet(ctx, args.Filename)

	case strings.HasPrefix(args.Filename, "http://"), strings.HasPrefix(args.Filename, "https://"):
		result, err = h.seedrClient.AddURL(ctx, args.Filename)

	case args.Filename != "":
		return nil, badRequest("unsupported filename: %s", args.Filename)

	default:
		return nil, badRequest("filename or metainfo is required")
	}

	if err != nil {
		return nil, err
	}
	if !result.Result {
		msg := result.ErrorText()
		if msg == "" {
			msg = fmt.Sprintf("seedr rejected the torrent (code %d)", result.Code)
		}
		return nil, &rpcError{msg: msg}
	}

	if result.UserTorrentID != nil {
		added.ID = *result.UserTorrentID
	}
	if result.Title != nil && *result.Title != "" {
		added.Name = *result.Title
	}
	if added.Name == "" {
		added.Name = "unknown"
	}

	h.logger.Infof("[%s]: torrent added to Seedr", added.Name)
	return &transmission.TorrentAddedResponse{TorrentAdded: &added}, nil
}

func torrentFileName(name string) string {
	if name == "" {
		name = "upload"
	}
	if !strings.HasSuffix(name, ".torrent") {
		name += ".torrent"
	}
	return name
}

// handleTorrentRemove handles the torrent-remove RPC method.
func (h *Handler) handleTorrentRemove(ctx context.Context, req *transmission.Request) error {
	var args transmission.TorrentRemoveArguments
	if err := bindArguments(req, &args); err != nil {
		return &badRequestError{err: err}
	}
	if len(args.IDs) == 0 {
		return nil
	}

	// Build a set of transfer hashes to remove
	hashSet := make(map[string]bool)
	for _, id := range args.IDs {
		if folderID, ok := transmission.ParseFolderHash(id); ok {
			if !args.DeleteLocalData {
				h.logger.Debugf("Keeping folder %d: delete-local-data not requested", folderID)
				continue
			}
			h.removeResult("folder", folderID, func() (*seedr.APIResult, error) {
				return h.seedrClient.DeleteFolder(ctx, folderID)
			})
			continue
		}
		hashSet[strings.ToLower(id)] = true
	}
	if len(hashSet) == 0 {
		return nil
	}

	content, err := h.seedrClient.ListRootFolder(ctx)
	if err != nil {
		return err
	}

	for _, t := range content.Torrents {
		if t.Hash == nil || !hashSet[strings.ToLower(*t.Hash)] {
			continue
		}
		transferID := t.ID
		h.removeResult("transfer", transferID, func() (*seedr.APIResult, error) {
			return h.seedrClient.DeleteTransfer(ctx, transferID)
		})
	}

	return nil
}

func (h *Handler) removeResult(kind string, id int64, remove func() (*seedr.APIResult, error)) {
	result, err := remove()
	switch {
	case err != nil:
		h.logger.Errorf("Failed to remove %s %d: %v", kind, id, err)
	case !result.Result:
		h.logger.Errorf("Failed to remove %s %d: %s", kind, id, result.ErrorText())
	default:
		h.logger.Infof("Removed %s %d from Seedr", kind, id)
	}
}

func bindArguments[T any](req *transmission.Request, dest *T) error {
	if len(req.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Arguments, dest)
}

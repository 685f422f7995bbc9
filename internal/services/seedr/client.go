package seedr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ochronus/goseedr/internal/metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://www.seedr.cc/rest"
	DefaultTimeout = 30 * time.Second
)

// Client represents a Seedr REST API client
type Client struct {
	baseURL    string
	authHeader string
	timeout    time.Duration
	httpClient *http.Client
	launcher   Launcher
	logger     *logrus.Logger
	fs         afero.Fs
}

var _ ClientAPI = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (used by tests and proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is kept
// unless WithTimeout is also given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout. A client passed with WithHTTPClient
// is copied, never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the diagnostics logger. The default logger discards output.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFs sets the filesystem local torrent files are read from.
func WithFs(fsys afero.Fs) Option {
	return func(c *Client) {
		if fsys != nil {
			c.fs = fsys
		}
	}
}

// NewClient creates a new Seedr client authenticating with email and password.
// A nil launcher makes every browser download report failure.
func NewClient(email, password string, launcher Launcher, opts ...Option) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := &Client{
		baseURL:    DefaultBaseURL,
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password)),
		launcher:   launcher,
		logger:     logger,
		fs:         afero.NewOsFs(),
	}
	if c.launcher == nil {
		c.launcher = nopLauncher{}
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   DefaultTimeout,
		}
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	return c
}

func (c *Client) fullURL(endpoint string) string {
	return c.baseURL + "/" + endpoint
}

// newRequest builds a request carrying the credentials and JSON accept header.
func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.fullURL(endpoint), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

// send issues one request and funnels the response through handleResponse.
func send[T any](ctx context.Context, c *Client, method, endpoint string, body io.Reader, contentType string) (*T, error) {
	route := metrics.Route(endpoint)
	start := time.Now()

	req, err := c.newRequest(ctx, method, endpoint, body, contentType)
	if err != nil {
		metrics.SeedrRequestsTotal.WithLabelValues(method, route, KindTransport.String()).Inc()
		return nil, &Error{Kind: KindTransport, Method: method, Endpoint: endpoint, Err: err}
	}

	c.logger.Debugf("%s request to: %s", method, req.URL)
	resp, err := c.httpClient.Do(req)
	metrics.SeedrRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Debugf("%s %s failed: %v", method, endpoint, err)
		metrics.SeedrRequestsTotal.WithLabelValues(method, route, KindTransport.String()).Inc()
		return nil, &Error{Kind: KindTransport, Method: method, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	result, err := handleResponse[T](c, resp, method, endpoint)
	outcome := "ok"
	var apiErr *Error
	if errors.As(err, &apiErr) {
		outcome = apiErr.Kind.String()
	}
	metrics.SeedrRequestsTotal.WithLabelValues(method, route, outcome).Inc()

	return result, err
}

func get[T any](ctx context.Context, c *Client, endpoint string) (*T, error) {
	return send[T](ctx, c, http.MethodGet, endpoint, nil, "")
}

func post[T any](ctx context.Context, c *Client, endpoint string, body io.Reader, contentType string) (*T, error) {
	return send[T](ctx, c, http.MethodPost, endpoint, body, contentType)
}

func postForm[T any](ctx context.Context, c *Client, endpoint string, form url.Values) (*T, error) {
	return post[T](ctx, c, endpoint, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func del[T any](ctx context.Context, c *Client, endpoint string) (*T, error) {
	return send[T](ctx, c, http.MethodDelete, endpoint, nil, "")
}

// ListRootFolder lists the root folder
func (c *Client) ListRootFolder(ctx context.Context) (*FolderContent, error) {
	return get[FolderContent](ctx, c, "folder")
}

// ListFolder lists a folder by id
func (c *Client) ListFolder(ctx context.Context, folderID int64) (*FolderContent, error) {
	return get[FolderContent](ctx, c, fmt.Sprintf("folder/%d", folderID))
}

// CreateFolder creates a folder at the given path
func (c *Client) CreateFolder(ctx context.Context, path string) (*APIResult, error) {
	return postForm[APIResult](ctx, c, "folder", url.Values{"path": {path}})
}

// RenameFolder renames a folder
func (c *Client) RenameFolder(ctx context.Context, folderID int64, newName string) (*APIResult, error) {
	return postForm[APIResult](ctx, c, fmt.Sprintf("folder/%d/rename", folderID), url.Values{"rename_to": {newName}})
}

// DeleteFolder deletes a folder
func (c *Client) DeleteFolder(ctx context.Context, folderID int64) (*APIResult, error) {
	return del[APIResult](ctx, c, fmt.Sprintf("folder/%d", folderID))
}

// GetFileHLS returns the HLS stream URL of a file in APIResult.URL
func (c *Client) GetFileHLS(ctx context.Context, fileID int64) (*APIResult, error) {
	return get[APIResult](ctx, c, fmt.Sprintf("file/%d/hls", fileID))
}

// RenameFile renames a file
func (c *Client) RenameFile(ctx context.Context, fileID int64, newName string) (*APIResult, error) {
	return postForm[APIResult](ctx, c, fmt.Sprintf("file/%d/rename", fileID), url.Values{"rename_to": {newName}})
}

// DeleteFile deletes a file
func (c *Client) DeleteFile(ctx context.Context, fileID int64) (*APIResult, error) {
	return del[APIResult](ctx, c, fmt.Sprintf("file/%d", fileID))
}

// AddMagnet starts a transfer from a magnet link
func (c *Client) AddMagnet(ctx context.Context, magnet string) (*APIResult, error) {
	return postForm[APIResult](ctx, c, "transfer/magnet", url.Values{"magnet": {magnet}})
}

// AddURL starts a transfer from a URL pointing at a torrent
func (c *Client) AddURL(ctx context.Context, rawURL string) (*APIResult, error) {
	return postForm[APIResult](ctx, c, "transfer/url", url.Values{"url": {rawURL}})
}

// AddTorrentFile uploads a local .torrent file. A file that cannot be opened
// is reported as a failed result without contacting Seedr.
func (c *Client) AddTorrentFile(ctx context.Context, path string) (*APIResult, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		c.logger.Debugf("cannot open %s: %v", path, err)
		msg := "local file not found"
		if !errors.Is(err, fs.ErrNotExist) {
			msg = fmt.Sprintf("cannot open local file: %v", err)
		}
		return &APIResult{Result: false, Error: &msg}, nil
	}
	defer f.Close()

	return c.AddTorrentData(ctx, filepath.Base(path), f)
}

// AddTorrentData streams torrent content as the multipart field "file".
func (c *Client) AddTorrentData(ctx context.Context, name string, r io.Reader) (*APIResult, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	done := make(chan struct{})
	go func() {
		defer close(done)
		part, err := writer.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	result, err := post[APIResult](ctx, c, "transfer/file", pr, writer.FormDataContentType())

	// Unblock the writer if the request ended before consuming the body.
	pr.Close()
	<-done

	return result, err
}

// GetTransfer returns a transfer by id
func (c *Client) GetTransfer(ctx context.Context, transferID int64) (*Transfer, error) {
	return get[Transfer](ctx, c, fmt.Sprintf("transfer/%d", transferID))
}

// DeleteTransfer deletes a transfer
func (c *Client) DeleteTransfer(ctx context.Context, transferID int64) (*APIResult, error) {
	return del[APIResult](ctx, c, fmt.Sprintf("transfer/%d", transferID))
}

// GetUser returns the account embedded in the "user" envelope
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	result, err := get[APIResult](ctx, c, "user")
	if err != nil {
		return nil, err
	}

	if result.Account == nil {
		if result.Code >= http.StatusMultipleChoices {
			return nil, &Error{Kind: KindStatus, Method: http.MethodGet, Endpoint: "user", StatusCode: result.Code, Body: result.ErrorText()}
		}
		return nil, &Error{Kind: KindDecode, Method: http.MethodGet, Endpoint: "user", Err: errors.New("response has no account")}
	}

	return result.Account, nil
}

// FileLink returns the redirecting download URL of a file
func (c *Client) FileLink(fileID int64) string {
	return c.fullURL(fileLinkEndpoint(fileID))
}

// FolderLink returns the redirecting archive URL of a folder
func (c *Client) FolderLink(folderID int64) string {
	return c.fullURL(folderLinkEndpoint(folderID))
}

func fileLinkEndpoint(fileID int64) string {
	return "file/" + strconv.FormatInt(fileID, 10)
}

func folderLinkEndpoint(folderID int64) string {
	return "folder/" + strconv.FormatInt(folderID, 10) + "/download"
}

// ResolveFileLink follows the file download redirect and reports the final URL
func (c *Client) ResolveFileLink(ctx context.Context, fileID int64) DownloadLinkResult {
	return c.resolveLink(ctx, fileLinkEndpoint(fileID))
}

// ResolveFolderArchiveLink follows the folder archive redirect and reports the final URL
func (c *Client) ResolveFolderArchiveLink(ctx context.Context, folderID int64) DownloadLinkResult {
	return c.resolveLink(ctx, folderLinkEndpoint(folderID))
}

// resolveLink reads only the response headers: the payload behind the
// redirect may be arbitrarily large.
func (c *Client) resolveLink(ctx context.Context, endpoint string) DownloadLinkResult {
	route := metrics.Route(endpoint)
	start := time.Now()

	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return DownloadLinkResult{ErrorMessage: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	metrics.SeedrRequestDuration.WithLabelValues(http.MethodGet, route).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Debugf("error resolving %s: %v", endpoint, err)
		metrics.SeedrRequestsTotal.WithLabelValues(http.MethodGet, route, KindTransport.String()).Inc()
		return DownloadLinkResult{ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		metrics.SeedrRequestsTotal.WithLabelValues(http.MethodGet, route, "ok").Inc()
		return DownloadLinkResult{
			URL:        resp.Request.URL.String(),
			Success:    true,
			StatusCode: resp.StatusCode,
		}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, logBodyLimit))
	c.logger.Debugf("error resolving %s: %s - %s", endpoint, statusLine(resp.StatusCode), body)
	metrics.SeedrRequestsTotal.WithLabelValues(http.MethodGet, route, KindStatus.String()).Inc()

	return DownloadLinkResult{
		ErrorMessage: "API Error: " + statusLine(resp.StatusCode),
		StatusCode:   resp.StatusCode,
	}
}

// DownloadFileInBrowser resolves the file link and hands it to the launcher
func (c *Client) DownloadFileInBrowser(ctx context.Context, fileID int64) bool {
	link := c.ResolveFileLink(ctx, fileID)
	if !link.Success || link.URL == "" {
		c.logger.Debugf("failed to get download link for file %d: %s", fileID, link.ErrorMessage)
		return false
	}
	return c.launch(ctx, link.URL)
}

// DownloadFolderInBrowser hands the folder archive link to the launcher
func (c *Client) DownloadFolderInBrowser(ctx context.Context, folderID int64) bool {
	return c.launch(ctx, c.FolderLink(folderID))
}

func (c *Client) launch(ctx context.Context, target string) bool {
	mode := LaunchSystemPreferred
	ok := c.launcher.Open(ctx, target, mode)
	metrics.BrowserLaunchesTotal.WithLabelValues(mode.String(), strconv.FormatBool(ok)).Inc()
	return ok
}

// Package seedrtest provides a hand-written seedr.ClientAPI double for tests.
package seedrtest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ochronus/goseedr/internal/services/seedr"
)

// Mock implements seedr.ClientAPI. Each method delegates to the matching
// func field when set and otherwise returns a successful empty result.
// Every call is recorded as "Method arg..." in Calls.
type Mock struct {
	mu    sync.Mutex
	Calls []string

	ListRootFolderFunc func(ctx context.Context) (*seedr.FolderContent, error)
	ListFolderFunc     func(ctx context.Context, folderID int64) (*seedr.FolderContent, error)
	CreateFolderFunc   func(ctx context.Context, path string) (*seedr.APIResult, error)
	RenameFolderFunc   func(ctx context.Context, folderID int64, newName string) (*seedr.APIResult, error)
	DeleteFolderFunc   func(ctx context.Context, folderID int64) (*seedr.APIResult, error)
	GetFileHLSFunc     func(ctx context.Context, fileID int64) (*seedr.APIResult, error)
	RenameFileFunc     func(ctx context.Context, fileID int64, newName string) (*seedr.APIResult, error)
	DeleteFileFunc     func(ctx context.Context, fileID int64) (*seedr.APIResult, error)
	AddMagnetFunc      func(ctx context.Context, magnet string) (*seedr.APIResult, error)
	AddURLFunc         func(ctx context.Context, rawURL string) (*seedr.APIResult, error)
	AddTorrentFileFunc func(ctx context.Context, path string) (*seedr.APIResult, error)
	AddTorrentDataFunc func(ctx context.Context, name string, r io.Reader) (*seedr.APIResult, error)
	GetTransferFunc    func(ctx context.Context, transferID int64) (*seedr.Transfer, error)
	DeleteTransferFunc func(ctx context.Context, transferID int64) (*seedr.APIResult, error)
	GetUserFunc        func(ctx context.Context) (*seedr.User, error)
	ResolveFileFunc    func(ctx context.Context, fileID int64) seedr.DownloadLinkResult
	ResolveFolderFunc  func(ctx context.Context, folderID int64) seedr.DownloadLinkResult
	DownloadFileFunc   func(ctx context.Context, fileID int64) bool
	DownloadFolderFunc func(ctx context.Context, folderID int64) bool
}

var _ seedr.ClientAPI = (*Mock)(nil)

func (m *Mock) record(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, fmt.Sprintf(format, args...))
}

// CallLog returns a copy of the recorded calls.
func (m *Mock) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

// Success returns a successful APIResult.
func Success() *seedr.APIResult {
	return &seedr.APIResult{Code: 200, Result: true}
}

// Failure returns a logical failure carrying message.
func Failure(code int, message string) *seedr.APIResult {
	return &seedr.APIResult{Code: code, Result: false, Error: &message}
}

func (m *Mock) ListRootFolder(ctx context.Context) (*seedr.FolderContent, error) {
	m.record("ListRootFolder")
	if m.ListRootFolderFunc != nil {
		return m.ListRootFolderFunc(ctx)
	}
	return &seedr.FolderContent{}, nil
}

func (m *Mock) ListFolder(ctx context.Context, folderID int64) (*seedr.FolderContent, error) {
	m.record("ListFolder %d", folderID)
	if m.ListFolderFunc != nil {
		return m.ListFolderFunc(ctx, folderID)
	}
	return &seedr.FolderContent{ID: folderID}, nil
}

func (m *Mock) CreateFolder(ctx context.Context, path string) (*seedr.APIResult, error) {
	m.record("CreateFolder %s", path)
	if m.CreateFolderFunc != nil {
		return m.CreateFolderFunc(ctx, path)
	}
	return Success(), nil
}

func (m *Mock) RenameFolder(ctx context.Context, folderID int64, newName string) (*seedr.APIResult, error) {
	m.record("RenameFolder %d %s", folderID, newName)
	if m.RenameFolderFunc != nil {
		return m.RenameFolderFunc(ctx, folderID, newName)
	}
	return Success(), nil
}

func (m *Mock) DeleteFolder(ctx context.Context, folderID int64) (*seedr.APIResult, error) {
	m.record("DeleteFolder %d", folderID)
	if m.DeleteFolderFunc != nil {
		return m.DeleteFolderFunc(ctx, folderID)
	}
	return Success(), nil
}

func (m *Mock) GetFileHLS(ctx context.Context, fileID int64) (*seedr.APIResult, error) {
	m.record("GetFileHLS %d", fileID)
	if m.GetFileHLSFunc != nil {
		return m.GetFileHLSFunc(ctx, fileID)
	}
	return Success(), nil
}

func (m *Mock) RenameFile(ctx context.Context, fileID int64, newName string) (*seedr.APIResult, error) {
	m.record("RenameFile %d %s", fileID, newName)
	if m.RenameFileFunc != nil {
		return m.RenameFileFunc(ctx, fileID, newName)
	}
	return Success(), nil
}

func (m *Mock) DeleteFile(ctx context.Context, fileID int64) (*seedr.APIResult, error) {
	m.record("DeleteFile %d", fileID)
	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(ctx, fileID)
	}
	return Success(), nil
}

func (m *Mock) AddMagnet(ctx context.Context, magnet string) (*seedr.APIResult, error) {
	m.record("AddMagnet %s", magnet)
	if m.AddMagnetFunc != nil {
		return m.AddMagnetFunc(ctx, magnet)
	}
	return Success(), nil
}

func (m *Mock) AddURL(ctx context.Context, rawURL string) (*seedr.APIResult, error) {
	m.record("AddURL %s", rawURL)
	if m.AddURLFunc != nil {
		return m.AddURLFunc(ctx, rawURL)
	}
	return Success(), nil
}

func (m *Mock) AddTorrentFile(ctx context.Context, path string) (*seedr.APIResult, error) {
	m.record("AddTorrentFile %s", path)
	if m.AddTorrentFileFunc != nil {
		return m.AddTorrentFileFunc(ctx, path)
	}
	return Success(), nil
}

func (m *Mock) AddTorrentData(ctx context.Context, name string, r io.Reader) (*seedr.APIResult, error) {
	m.record("AddTorrentData %s", name)
	if m.AddTorrentDataFunc != nil {
		return m.AddTorrentDataFunc(ctx, name, r)
	}
	_, _ = io.Copy(io.Discard, r)
	return Success(), nil
}

func (m *Mock) GetTransfer(ctx context.Context, transferID int64) (*seedr.Transfer, error) {
	m.record("GetTransfer %d", transferID)
	if m.GetTransferFunc != nil {
		return m.GetTransferFunc(ctx, transferID)
	}
	return &seedr.Transfer{ID: transferID}, nil
}

func (m *Mock) DeleteTransfer(ctx context.Context, transferID int64) (*seedr.APIResult, error) {
	m.record("DeleteTransfer %d", transferID)
	if m.DeleteTransferFunc != nil {
		return m.DeleteTransferFunc(ctx, transferID)
	}
	return Success(), nil
}

func (m *Mock) GetUser(ctx context.Context) (*seedr.User, error) {
	m.record("GetUser")
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx)
	}
	return &seedr.User{ID: 1, Username: "mock"}, nil
}

func (m *Mock) ResolveFileLink(ctx context.Context, fileID int64) seedr.DownloadLinkResult {
	m.record("ResolveFileLink %d", fileID)
	if m.ResolveFileFunc != nil {
		return m.ResolveFileFunc(ctx, fileID)
	}
	return seedr.DownloadLinkResult{URL: m.FileLink(fileID), Success: true, StatusCode: 200}
}

func (m *Mock) ResolveFolderArchiveLink(ctx context.Context, folderID int64) seedr.DownloadLinkResult {
	m.record("ResolveFolderArchiveLink %d", folderID)
	if m.ResolveFolderFunc != nil {
		return m.ResolveFolderFunc(ctx, folderID)
	}
	return seedr.DownloadLinkResult{URL: m.FolderLink(folderID), Success: true, StatusCode: 200}
}

func (m *Mock) FileLink(fileID int64) string {
	return fmt.Sprintf("%s/file/%d", seedr.DefaultBaseURL, fileID)
}

func (m *Mock) FolderLink(folderID int64) string {
	return fmt.Sprintf("%s/folder/%d/download", seedr.DefaultBaseURL, folderID)
}

func (m *Mock) DownloadFileInBrowser(ctx context.Context, fileID int64) bool {
	m.record("DownloadFileInBrowser %d", fileID)
	if m.DownloadFileFunc != nil {
		return m.DownloadFileFunc(ctx, fileID)
	}
	return true
}

func (m *Mock) DownloadFolderInBrowser(ctx context.Context, folderID int64) bool {
	m.record("DownloadFolderInBrowser %d", folderID)
	if m.DownloadFolderFunc != nil {
		return m.DownloadFolderFunc(ctx, folderID)
	}
	return true
}

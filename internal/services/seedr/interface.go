package seedr

import (
	"context"
	"io"
)

// ClientAPI defines the Seedr operations used by the rest of the app.
// It mirrors the concrete client so it can be mocked in tests.
type ClientAPI interface {
	ListRootFolder(ctx context.Context) (*FolderContent, error)
	ListFolder(ctx context.Context, folderID int64) (*FolderContent, error)
	CreateFolder(ctx context.Context, path string) (*APIResult, error)
	RenameFolder(ctx context.Context, folderID int64, newName string) (*APIResult, error)
	DeleteFolder(ctx context.Context, folderID int64) (*APIResult, error)

	GetFileHLS(ctx context.Context, fileID int64) (*APIResult, error)
	RenameFile(ctx context.Context, fileID int64, newName string) (*APIResult, error)
	DeleteFile(ctx context.Context, fileID int64) (*APIResult, error)

	AddMagnet(ctx context.Context, magnet string) (*APIResult, error)
	AddURL(ctx context.Context, rawURL string) (*APIResult, error)
	AddTorrentFile(ctx context.Context, path string) (*APIResult, error)
	AddTorrentData(ctx context.Context, name string, r io.Reader) (*APIResult, error)
	GetTransfer(ctx context.Context, transferID int64) (*Transfer, error)
	DeleteTransfer(ctx context.Context, transferID int64) (*APIResult, error)

	GetUser(ctx context.Context) (*User, error)

	ResolveFileLink(ctx context.Context, fileID int64) DownloadLinkResult
	ResolveFolderArchiveLink(ctx context.Context, folderID int64) DownloadLinkResult
	FileLink(fileID int64) string
	FolderLink(folderID int64) string
	DownloadFileInBrowser(ctx context.Context, fileID int64) bool
	DownloadFolderInBrowser(ctx context.Context, folderID int64) bool
}

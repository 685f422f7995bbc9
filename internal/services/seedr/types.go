package seedr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// APIResult is the generic envelope returned by most Seedr endpoints.
// The "user" endpoint reuses it to carry the account.
type APIResult struct {
	Code          int     `json:"code"`
	Result        bool    `json:"result"`
	Error         *string `json:"error"`
	UserTorrentID *int64  `json:"user_torrent_id"`
	Title         *string `json:"title"`
	ID            *int64  `json:"id"`
	Name          *string `json:"name"`
	Account       *User   `json:"account"`
	Country       *string `json:"country"`
	URL           *string `json:"url"`
}

// setFailure turns the result into a protocol failure for the given status.
func (r *APIResult) setFailure(statusCode int, detail string) {
	r.Result = false
	r.Code = statusCode
	r.Error = &detail
}

// ErrorText returns the error message or an empty string.
func (r *APIResult) ErrorText() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return *r.Error
}

// User represents the Seedr account
type User struct {
	ID                   int64        `json:"user_id"`
	Username             string       `json:"username"`
	Email                string       `json:"email"`
	PremiumExpire        *string      `json:"next_payment_due"`
	StorageTotal         int64        `json:"space_max"`
	StorageUsed          int64        `json:"space_used"`
	TorrentsStorageLimit int64        `json:"torrents_storage_limit"`
	Premium              int          `json:"premium"`
	PackageID            int64        `json:"package_id"`
	PackageName          *string      `json:"package_name"`
	BandwidthUsed        int64        `json:"bandwidth_used"`
	BillingPlan          *BillingPlan `json:"billing_plan"`
	Cancelled            int          `json:"cancelled"`
}

// IsCancelled reports whether the subscription has been cancelled.
func (u *User) IsCancelled() bool {
	return u.Cancelled != 0
}

// BillingPlan describes the plan attached to an account
type BillingPlan struct {
	Period      *string `json:"period"`
	Description *string `json:"description"`
	ID          FlexInt `json:"id"`
}

// FolderContent is the listing of one folder (root or subfolder)
type FolderContent struct {
	Name      string       `json:"name"`
	ID        int64        `json:"id"`
	Code      *int         `json:"code"`
	Timestamp *string      `json:"timestamp"`
	ParentID  *int64       `json:"parent_id"`
	Result    *bool        `json:"result"`
	Folders   []FolderItem `json:"folders"`
	Files     []FileItem   `json:"files"`
	SpaceMax  int64        `json:"space_max"`
	SpaceUsed int64        `json:"space_used"`
	Torrents  []Transfer   `json:"torrents"`
}

// FolderItem summarizes a subfolder within a listing
type FolderItem struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	LastUpdate string `json:"last_update"`
	FilesCount *int   `json:"files_count"`
	PlayVideo  *bool  `json:"play_video"`
	PlayAudio  *bool  `json:"play_audio"`
}

// FileItem summarizes a file within a listing
type FileItem struct {
	ID                   int64   `json:"id"`
	FolderID             int64   `json:"folder_id"`
	Name                 string  `json:"name"`
	Size                 int64   `json:"size"`
	DownloadURL          string  `json:"download_url"`
	StreamURL            string  `json:"stream_url"`
	VideoConvertedStatus string  `json:"video_converted_status"`
	TorrentHash          *string `json:"torrent_hash"`
	IsDeleted            bool    `json:"is_deleted"`
	CreatedAt            string  `json:"created_at"`
}

// Transfer is a torrent/magnet fetch job running on Seedr
type Transfer struct {
	ID              int64           `json:"id"`
	UserTorrentID   *int64          `json:"user_torrent_id"`
	Name            string          `json:"name"`
	Size            int64           `json:"size"`
	Progress        json.RawMessage `json:"progress"`
	TorrentQuality  int             `json:"torrent_quality"`
	Status          *string         `json:"status"`
	Hash            *string         `json:"hash"`
	ParentFolderID  FlexInt         `json:"parent_folder_id"`
	Timestamp       *string         `json:"timestamp"`
	DownloadRate    int64           `json:"download_rate"`
	UploadRate      int64           `json:"upload_rate"`
	Created         string          `json:"created"`
	Updated         string          `json:"updated"`
	Message         *string         `json:"message"`
	FolderCreatedID *int64          `json:"folder_created_id"`
	Files           []TransferFile  `json:"files"`
}

// ProgressPercent interprets the progress field, which Seedr sends either as a
// number or as a numeric string. ok is false when it is absent or unparseable.
func (t *Transfer) ProgressPercent() (float64, bool) {
	raw := bytes.TrimSpace(t.Progress)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// TransferFile is one file inside a transfer
type TransferFile struct {
	Name *string `json:"name"`
	Size int64   `json:"size"`
}

// DownloadLinkResult is the outcome of resolving a redirect-based download
// link. It is built locally and never decoded from JSON.
type DownloadLinkResult struct {
	URL          string
	Success      bool
	ErrorMessage string
	// StatusCode is zero when no response was received.
	StatusCode int
}

// FlexInt is an integer that Seedr sometimes encodes as a string.
type FlexInt int64

// UnmarshalJSON accepts numbers, numeric strings, empty strings and null.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*f = 0
		return nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		raw = []byte(s)
	}

	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", string(data), err)
	}
	*f = FlexInt(n)
	return nil
}

package transmission

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ochronus/goseedr/internal/services/seedr"
)

// FolderHashPrefix marks hashes synthesized for finished Seedr folders.
const FolderHashPrefix = "seedr-folder-"

// FolderIDOffset moves folder torrent ids out of the transfer id range so a
// folder and a transfer never share an id.
const FolderIDOffset int64 = 1 << 32

// seedrTimeLayout is the timestamp format used in Seedr listings.
const seedrTimeLayout = "2006-01-02 15:04:05"

// Response represents a Transmission RPC response
type Response struct {
	Result    string      `json:"result"`
	Arguments interface{} `json:"arguments,omitempty"`
}

// Request represents a Transmission RPC request
type Request struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Config represents Transmission session configuration
type Config struct {
	RPCVersion              string  `json:"rpc-version"`
	Version                 string  `json:"version"`
	DownloadDir             string  `json:"download-dir"`
	SeedRatioLimit          float32 `json:"seedRatioLimit"`
	SeedRatioLimited        bool    `json:"seedRatioLimited"`
	IdleSeedingLimit        uint64  `json:"idle-seeding-limit"`
	IdleSeedingLimitEnabled bool    `json:"idle-seeding-limit-enabled"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig(downloadDir string) *Config {
	return &Config{
		RPCVersion:              "18",
		Version:                 "14.0.0",
		DownloadDir:             downloadDir,
		SeedRatioLimit:          1.0,
		SeedRatioLimited:        true,
		IdleSeedingLimit:        100,
		IdleSeedingLimitEnabled: false,
	}
}

// Torrent represents a Transmission torrent
type Torrent struct {
	ID                 int64         `json:"id"`
	HashString         *string       `json:"hashString"`
	Name               string        `json:"name"`
	DownloadDir        string        `json:"downloadDir"`
	TotalSize          int64         `json:"totalSize"`
	LeftUntilDone      int64         `json:"leftUntilDone"`
	IsFinished         bool          `json:"isFinished"`
	ETA                int64         `json:"eta"`
	Status             TorrentStatus `json:"status"`
	SecondsDownloading int64         `json:"secondsDownloading"`
	ErrorString        *string       `json:"errorString"`
	DownloadedEver     int64         `json:"downloadedEver"`
	PercentDone        float64       `json:"percentDone"`
	RateDownload       int64         `json:"rateDownload"`
	RateUpload         int64         `json:"rateUpload"`
	SeedRatioLimit     float32       `json:"seedRatioLimit"`
	SeedRatioMode      uint32        `json:"seedRatioMode"`
	SeedIdleLimit      uint64        `json:"seedIdleLimit"`
	SeedIdleMode       uint32        `json:"seedIdleMode"`
	FileCount          uint32        `json:"fileCount"`
}

// TorrentStatus represents the status of a torrent
type TorrentStatus int

const (
	StatusStopped     TorrentStatus = 0
	StatusCheckWait   TorrentStatus = 1
	StatusCheck       TorrentStatus = 2
	StatusQueued      TorrentStatus = 3
	StatusDownloading TorrentStatus = 4
	StatusSeedingWait TorrentStatus = 5
	StatusSeeding     TorrentStatus = 6
)

// StatusFromString converts a Seedr transfer status to a TorrentStatus.
// Seedr usually omits the status, in which case the transfer is downloading.
func StatusFromString(status string) TorrentStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "stopped", "completed", "finished", "error", "failed":
		return StatusStopped
	case "fetching", "fetching_metadata", "preparing":
		return StatusCheckWait
	case "checking":
		return StatusCheck
	case "queued", "waiting":
		return StatusQueued
	case "seedingwait", "seeding_wait":
		return StatusSeedingWait
	case "seeding":
		return StatusSeeding
	default:
		return StatusDownloading
	}
}

// TorrentFromSeedrTransfer converts an in-progress Seedr transfer to a Transmission Torrent
func TorrentFromSeedrTransfer(t *seedr.Transfer, downloadDir string) *Torrent {
	name := t.Name
	if name == "" {
		name = "Unknown"
	}

	percent, ok := t.ProgressPercent()
	if !ok {
		percent = 0
	}
	percent = clamp(percent, 0, 100)

	downloaded := int64(float64(t.Size) * percent / 100)
	leftUntilDone := t.Size - downloaded
	if leftUntilDone < 0 {
		leftUntilDone = 0
	}

	// Transmission uses -1 for an unknown ETA.
	eta := int64(-1)
	if t.DownloadRate > 0 {
		eta = leftUntilDone / t.DownloadRate
	}

	status := StatusDownloading
	if t.Status != nil {
		status = StatusFromString(*t.Status)
	}

	fileCount := uint32(len(t.Files))
	if fileCount == 0 {
		fileCount = 1
	}

	return &Torrent{
		ID:                 t.ID,
		HashString:         t.Hash,
		Name:               name,
		DownloadDir:        downloadDir,
		TotalSize:          t.Size,
		LeftUntilDone:      leftUntilDone,
		IsFinished:         false,
		ETA:                eta,
		Status:             status,
		SecondsDownloading: secondsSince(t.Created),
		ErrorString:        t.Message,
		DownloadedEver:     downloaded,
		PercentDone:        percent / 100,
		RateDownload:       t.DownloadRate,
		RateUpload:         t.UploadRate,
		FileCount:          fileCount,
	}
}

// TorrentFromSeedrFolder converts a finished Seedr folder to a stopped, completed Torrent
func TorrentFromSeedrFolder(f *seedr.FolderItem, downloadDir string) *Torrent {
	hash := FolderHash(f.ID)

	var fileCount uint32 = 1
	if f.FilesCount != nil && *f.FilesCount > 0 {
		fileCount = uint32(*f.FilesCount)
	}

	return &Torrent{
		ID:             FolderIDOffset + f.ID,
		HashString:     &hash,
		Name:           f.Name,
		DownloadDir:    downloadDir,
		TotalSize:      f.Size,
		LeftUntilDone:  0,
		IsFinished:     true,
		ETA:            0,
		Status:         StatusStopped,
		DownloadedEver: f.Size,
		PercentDone:    1,
		FileCount:      fileCount,
	}
}

// FolderHash returns the synthetic hash of a Seedr folder.
func FolderHash(folderID int64) string {
	return FolderHashPrefix + strconv.FormatInt(folderID, 10)
}

// ParseFolderHash extracts the folder id from a synthetic folder hash.
func ParseFolderHash(hash string) (int64, bool) {
	if !strings.HasPrefix(hash, FolderHashPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(hash, FolderHashPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func secondsSince(timestamp string) int64 {
	if timestamp == "" {
		return 0
	}
	started, err := time.ParseInLocation(seedrTimeLayout, timestamp, time.UTC)
	if err != nil {
		return 0
	}
	seconds := int64(time.Since(started).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TorrentAddArguments represents arguments for torrent-add method
type TorrentAddArguments struct {
	Metainfo    string `json:"metainfo,omitempty"`
	Filename    string `json:"filename,omitempty"`
	DownloadDir string `json:"download-dir,omitempty"`
	Paused      bool   `json:"paused,omitempty"`
}

// TorrentRemoveArguments represents arguments for torrent-remove method
type TorrentRemoveArguments struct {
	IDs             []string `json:"ids"`
	DeleteLocalData bool     `json:"delete-local-data"`
}

// TorrentGetResponse represents the response for torrent-get method
type TorrentGetResponse struct {
	Torrents []*Torrent `json:"torrents"`
}

// TorrentAddedResponse represents the response for a successful torrent-add
type TorrentAddedResponse struct {
	TorrentAdded *AddedTorrent `json:"torrent-added"`
}

// AddedTorrent identifies the transfer created by torrent-add
type AddedTorrent struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	HashString string `json:"hashString"`
}

// String implements fmt.Stringer for log output.
func (s TorrentStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusCheckWait:
		return "check-wait"
	case StatusCheck:
		return "check"
	case StatusQueued:
		return "queued"
	case StatusDownloading:
		return "downloading"
	case StatusSeedingWait:
		return "seeding-wait"
	case StatusSeeding:
		return "seeding"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

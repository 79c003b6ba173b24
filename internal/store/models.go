package store

import "time"

// Status is the processing state of an asset. Transitions only move
// forward (uploading -> processing -> analyzing -> completed), with failed
// reachable from processing or analyzing. Reanalysis re-enters analyzing
// from completed.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusAnalyzing  Status = "analyzing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status ends a pipeline run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SensitivityStatus is the verdict of the content-sensitivity scan.
type SensitivityStatus string

const (
	SensitivityPending SensitivityStatus = "pending"
	SensitivitySafe    SensitivityStatus = "safe"
	SensitivityFlagged SensitivityStatus = "flagged"
	SensitivityError   SensitivityStatus = "error"
)

// CategoryScore holds one category's score and whether it met its
// configured threshold.
type CategoryScore struct {
	Score             int  `json:"score"`
	ExceededThreshold bool `json:"exceededThreshold"`
}

// Sensitivity is the full classification result attached to an asset.
type Sensitivity struct {
	Status         SensitivityStatus        `json:"status"`
	OverallScore   *int                     `json:"overallScore"`
	CategoryScores map[string]CategoryScore `json:"categoryScores,omitempty"`
	Reasons        []string                 `json:"reasons,omitempty"`
}

// Asset is one uploaded media file plus its derived state.
//
// Nullable technical metadata uses pointer fields: nil means the probe or
// thumbnail stage has not run, or failed non-fatally.
type Asset struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	OriginalName    string      `json:"originalName"`
	SourcePath      string      `json:"-"`
	MimeType        string      `json:"mimeType,omitempty"`
	Size            int64       `json:"size"`
	Status          Status      `json:"status"`
	Progress        int         `json:"progress"`
	ProgressMessage string      `json:"progressMessage,omitempty"`
	Duration        *float64    `json:"durationSeconds,omitempty"`
	Width           *int        `json:"width,omitempty"`
	Height          *int        `json:"height,omitempty"`
	Codec           *string     `json:"codec,omitempty"`
	FrameRate       *float64    `json:"frameRate,omitempty"`
	ThumbnailPath   *string     `json:"-"`
	HasThumbnail    bool        `json:"hasThumbnail"`
	Sensitivity     Sensitivity `json:"sensitivity"`
	ErrorMessage    *string     `json:"errorMessage,omitempty"`
	Views           int64       `json:"views"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// AssetUpdate is a partial field set applied atomically to one asset.
// Nil fields are left unchanged.
type AssetUpdate struct {
	Status          *Status
	Progress        *int
	ProgressMessage *string
	Duration        *float64
	Width           *int
	Height          *int
	Codec           *string
	FrameRate       *float64
	ThumbnailPath   *string
	MimeType        *string
	Sensitivity     *Sensitivity
	ErrorMessage    *string
}

// ListOptions select a page of assets.
type ListOptions struct {
	Status   Status // empty means all
	Page     int
	PageSize int
}

// Listing is one page of assets, newest first.
type Listing struct {
	Items      []Asset `json:"items"`
	TotalItems int     `json:"totalItems"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
}

// Stats summarizes the store contents.
type Stats struct {
	TotalAssets   int            `json:"totalAssets"`
	CountByStatus map[string]int `json:"countByStatus"`
	FlaggedAssets int            `json:"flaggedAssets"`
	TotalViews    int64          `json:"totalViews"`
}

package pipeline

import "media-pipeline/internal/store"

// Event names published by the pipeline.
const (
	EventProcessingUpdate    = "processing:update"
	EventProcessingError     = "processing:error"
	EventSensitivityComplete = "sensitivity:complete"
	EventVideoReady          = "video:ready"
)

// ProgressPayload accompanies processing:update events.
type ProgressPayload struct {
	AssetID  string       `json:"assetId"`
	Progress int          `json:"progress"`
	Message  string       `json:"message"`
	Status   store.Status `json:"status"`
}

// ErrorPayload accompanies processing:error events.
type ErrorPayload struct {
	AssetID string `json:"assetId"`
	Error   string `json:"error"`
}

// SensitivityPayload accompanies sensitivity:complete events.
type SensitivityPayload struct {
	AssetID string                         `json:"assetId"`
	Status  store.SensitivityStatus        `json:"status"`
	Score   int                            `json:"score"`
	Details map[string]store.CategoryScore `json:"details"`
	Reasons []string                       `json:"reasons"`
}

// ReadyPayload accompanies video:ready events.
type ReadyPayload struct {
	AssetID string       `json:"assetId"`
	Asset   *store.Asset `json:"asset"`
}

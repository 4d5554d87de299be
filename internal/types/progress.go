package types

import "github.com/google/uuid"

// ProgressEvent is the at-least-once wire notification for one variant's
// status/percent/message. It is not persisted beyond updating the variant row;
// delivery may be duplicated or out of order, so application must be
// idempotent and monotonic per variant.
type ProgressEvent struct {
	VariantID   uuid.UUID     `json:"variant_id"`
	ProjectID   uuid.UUID     `json:"project_id"`
	Status      VariantStatus `json:"status"`
	Percent     int           `json:"percent"`
	Message     string        `json:"message,omitempty"`
	VideoKey    string        `json:"video_key,omitempty"`
	SubtitleKey string        `json:"subtitle_key,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// VariantProgress is the aggregated per-variant view exposed to clients.
type VariantProgress struct {
	Status      VariantStatus `json:"status"`
	Percent     int           `json:"percent"`
	Message     string        `json:"message,omitempty"`
	VideoURL    string        `json:"video_url,omitempty"`
	SubtitleURL string        `json:"subtitle_url,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// BatchSummary folds a variant batch into one view. AllDone means every
// variant is terminal; per-variant failure is inside the batch, not a
// batch-level failure.
type BatchSummary struct {
	Variants  map[uuid.UUID]VariantProgress `json:"variants"`
	AllDone   bool                          `json:"all_done"`
	Completed int                           `json:"completed"`
	Failed    int                           `json:"failed"`
}

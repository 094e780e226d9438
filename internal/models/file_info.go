package models

import "time"

// FileInfo represents metadata about a file stored in a review session folder.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Kind       string    `json:"kind"` // "drawing", "bundle", "other"
}

package models

import "time"

// VideoStatus represents the compression state of a video
type VideoStatus string

const (
	VideoStatusQueued     VideoStatus = "queued"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusFailed     VideoStatus = "failed"
)

// Video represents an uploaded video and its compressed rendition
type Video struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	PublicID       string      `json:"publicId"`
	OriginalSize   int64       `json:"originalSize"`
	CompressedSize int64       `json:"compressedSize"`
	Duration       float64     `json:"duration"`
	Status         VideoStatus `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// CompressionRatio returns how much smaller the compressed rendition is, in percent.
// It is zero until compression has finished.
func (v *Video) CompressionRatio() float64 {
	if v.OriginalSize <= 0 || v.CompressedSize <= 0 {
		return 0
	}
	return (1 - float64(v.CompressedSize)/float64(v.OriginalSize)) * 100
}

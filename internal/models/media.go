package models

// MediaType represents a storage namespace for blobs
type MediaType string

const (
	MediaTypeVideo           MediaType = "video"
	MediaTypeVideoCompressed MediaType = "video_compressed"
	MediaTypeImage           MediaType = "image"
)

// Valid reports whether t is a known media type
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeVideo, MediaTypeVideoCompressed, MediaTypeImage:
		return true
	default:
		return false
	}
}

// RenderRequest describes a transformation of an uploaded image
type RenderRequest struct {
	PublicID    string
	Width       int
	Height      int
	AspectRatio string
	Crop        string
	Gravity     string
}

// SessionInfo is returned by the session endpoint
type SessionInfo struct {
	Valid  bool `json:"valid"`
	UserID int  `json:"userId"`
}

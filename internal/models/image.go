package models

import "time"

// Image represents an uploaded image
type Image struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublicID    string    `json:"publicId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ImageUploadResponse is returned by the image upload endpoint
type ImageUploadResponse struct {
	PublicID string `json:"publicId"`
}

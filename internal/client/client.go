// Package client is an HTTP client for the media API
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ferp/backend/internal/models"
)

// ErrUnexpectedFormat is returned when a response body does not have the expected shape
var ErrUnexpectedFormat = errors.New("unexpected response format")

// maxErrorBody bounds how much of an error response is kept
const maxErrorBody = 4096

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &payload) == nil && payload.Error != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, payload.Error)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// File is a local file to upload
type File struct {
	Name    string
	Size    int64
	Content io.Reader
}

// Client talks to the media API on behalf of one session
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new client. token may be empty for unauthenticated calls.
// A nil httpClient uses a client without an overall timeout, since uploads can be long.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: http.DefaultTransport}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// ListVideos fetches the video collection
func (c *Client) ListVideos(ctx context.Context) ([]models.Video, error) {
	var videos []models.Video
	if err := c.getArray(ctx, "/api/videos", &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

// ListImages fetches the image collection
func (c *Client) ListImages(ctx context.Context) ([]models.Image, error) {
	var images []models.Image
	if err := c.getArray(ctx, "/api/images", &images); err != nil {
		return nil, err
	}
	return images, nil
}

// UploadVideo sends one multipart request carrying the file, title,
// description and the decimal byte size of the file. Any 2xx response is a
// success; the returned record is nil when the body does not decode.
func (c *Client) UploadVideo(ctx context.Context, file File, title, description string) (*models.Video, error) {
	fields := [][2]string{
		{"title", title},
		{"description", description},
		{"originalSize", strconv.FormatInt(file.Size, 10)},
	}

	resp, err := c.postMultipart(ctx, "/api/video-upload", fields, file)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var video models.Video
	if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
		return nil, nil
	}
	return &video, nil
}

// UploadImage uploads an image and returns its reference handle
func (c *Client) UploadImage(ctx context.Context, file File) (string, error) {
	resp, err := c.postMultipart(ctx, "/api/image-upload", nil, file)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out models.ImageUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
	}
	if out.PublicID == "" {
		return "", fmt.Errorf("%w: missing publicId", ErrUnexpectedFormat)
	}
	return out.PublicID, nil
}

// RenderURL returns the URL of a rendering
func (c *Client) RenderURL(req models.RenderRequest) string {
	q := url.Values{}
	if req.Width > 0 {
		q.Set("w", strconv.Itoa(req.Width))
	}
	if req.Height > 0 {
		q.Set("h", strconv.Itoa(req.Height))
	}
	if req.AspectRatio != "" {
		q.Set("ar", req.AspectRatio)
	}
	if req.Crop != "" {
		q.Set("c", req.Crop)
	}
	if req.Gravity != "" {
		q.Set("g", req.Gravity)
	}
	return fmt.Sprintf("%s/api/images/%s/render?%s", c.baseURL, url.PathEscape(req.PublicID), q.Encode())
}

// MediaURL returns the download URL of a stored file
func (c *Client) MediaURL(mediaType models.MediaType, publicID string) string {
	return fmt.Sprintf("%s/api/media/%s/%s", c.baseURL, mediaType, url.PathEscape(publicID))
}

// Fetch downloads the body at rawURL
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

// Download streams a stored file into w
func (c *Client) Download(ctx context.Context, mediaType models.MediaType, publicID string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.MediaURL(mediaType, publicID), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to download %s: %w", publicID, err)
	}
	return n, nil
}

// Session reports on the current session. An unauthenticated caller gets Valid=false and no error.
func (c *Client) Session(ctx context.Context) (*models.SessionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/session", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized {
			return &models.SessionInfo{Valid: false}, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	var info models.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
	}
	return &info, nil
}

// Valid reports whether the current session is valid
func (c *Client) Valid(ctx context.Context) (bool, error) {
	info, err := c.Session(ctx)
	if err != nil {
		return false, err
	}
	return info.Valid, nil
}

// SignOut ends the current session
func (c *Client) SignOut(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/sign-out", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// getArray fetches path and decodes a JSON array into out.
// Anything but an array, null included, is ErrUnexpectedFormat.
func (c *Client) getArray(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("%s: %w: expected a JSON array", path, ErrUnexpectedFormat)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrUnexpectedFormat, err)
	}
	return nil
}

// postMultipart streams a multipart body with the given fields followed by the file part
func (c *Client) postMultipart(ctx context.Context, path string, fields [][2]string, file File) (*http.Response, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(writer, fields, file)
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return resp, nil
}

func writeMultipart(writer *multipart.Writer, fields [][2]string, file File) error {
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return err
	}
	if file.Content == nil {
		return nil
	}
	_, err = io.Copy(part, file.Content)
	return err
}

// do sends req with the session token and turns non-2xx responses into *StatusError
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

package api

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/nfnt/resize"
)

type Document struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // license, registration, insurance, avatar
	URL      string `json:"url"`
	Status   string `json:"status"` // pending, approved, rejected
	Note     string `json:"note,omitempty"`
	Uploaded string `json:"uploaded_at"`
}

func (c *Client) Profile(ctx context.Context) (*UserProfile, error) {
	var profile UserProfile
	if err := c.do(ctx, http.MethodGet, "/profile", nil, &profile); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return &profile, nil
}

func (c *Client) UpdateProfile(ctx context.Context, profile UserProfile) (*UserProfile, error) {
	var updated UserProfile
	if err := c.do(ctx, http.MethodPut, "/profile", profile, &updated); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &updated, nil
}

func (c *Client) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := c.do(ctx, http.MethodGet, "/profile/documents", nil, &docs); err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}
	return docs, nil
}

// UploadDocument posts one verification image as multipart form data.
// Images are downscaled client-side before transmission so a phone
// photo does not push megabytes through a mobile connection.
func (c *Client) UploadDocument(ctx context.Context, docType, filename string, r io.Reader) (*Document, error) {
	prepared, err := c.prepareImage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("type", docType); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(prepared); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/profile/documents"), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.uploads.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upload failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var doc Document
	if err := jsonDecode(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}

	c.log.WithField("type", docType).Info("Document uploaded")
	return &doc, nil
}

// prepareImage decodes, downscales to the configured max edge and
// re-encodes as JPEG. Non-image payloads fail here rather than at the
// backend.
func (c *Client) prepareImage(r io.Reader) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("not a decodable image: %w", err)
	}

	maxEdge := c.cfg.MaxImageEdge
	if maxEdge > 0 {
		bounds := img.Bounds()
		if bounds.Dx() > maxEdge || bounds.Dy() > maxEdge {
			img = resize.Thumbnail(uint(maxEdge), uint(maxEdge), img, resize.Lanczos3)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return buf.Bytes(), nil
}

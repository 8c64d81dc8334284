package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"messaging-sync/internal/models"
)

// Uploader stores an attachment with the external object-storage service and
// returns its public URL. Failures propagate to the caller: a message send
// must not proceed on a failed upload.
type Uploader interface {
	Upload(ctx context.Context, att *models.Attachment) (string, error)
}

// CloudinaryClient performs unsigned uploads against a Cloudinary-style
// endpoint: a multipart POST answered with a JSON body carrying secure_url.
type CloudinaryClient struct {
	uploadURL    string
	uploadPreset string
	httpc        *http.Client
}

// NewCloudinaryClient builds an uploader for the given cloud name. An
// explicit uploadURL overrides the derived endpoint (used by the stub
// backend and tests).
func NewCloudinaryClient(cloudName, uploadPreset, uploadURL string, httpc *http.Client) (*CloudinaryClient, error) {
	if uploadURL == "" {
		if cloudName == "" {
			return nil, errors.New("upload: cloud name not configured")
		}
		uploadURL = fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", cloudName)
	}
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &CloudinaryClient{
		uploadURL:    uploadURL,
		uploadPreset: uploadPreset,
		httpc:        httpc,
	}, nil
}

// Upload sends the attachment and returns the hosted URL.
func (c *CloudinaryClient) Upload(ctx context.Context, att *models.Attachment) (string, error) {
	if att == nil {
		return "", errors.New("upload: nil attachment")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", att.Name)
	if err != nil {
		return "", fmt.Errorf("upload: build form: %w", err)
	}
	if _, err := part.Write(att.Data); err != nil {
		return "", fmt.Errorf("upload: write file: %w", err)
	}
	if c.uploadPreset != "" {
		if err := writer.WriteField("upload_preset", c.uploadPreset); err != nil {
			return "", fmt.Errorf("upload: write preset: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("upload: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("upload: status %d: %s", resp.StatusCode, string(payload))
	}

	var result struct {
		SecureURL string `json:"secure_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("upload: decode response: %w", err)
	}
	if result.SecureURL == "" {
		return "", errors.New("upload: response missing secure_url")
	}
	return result.SecureURL, nil
}

var _ Uploader = (*CloudinaryClient)(nil)

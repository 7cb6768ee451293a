package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
)

// AcceptanceClient posts rendered certificates to the remote acceptance
// endpoint as multipart/form-data.
type AcceptanceClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

func NewAcceptanceClient(endpoint, apiKey string, timeout time.Duration, logger *slog.Logger) *AcceptanceClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AcceptanceClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *AcceptanceClient) Submit(ctx context.Context, sub Submission) error {
	body, contentType, err := encodeSubmission(sub)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("acceptance endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	c.logger.Debug("certificate accepted",
		slog.String("certificate_key", sub.Filename),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}

func encodeSubmission(sub Submission) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	eventDate := ""
	if !sub.EventDate.IsZero() {
		eventDate = sub.EventDate.Format(models.DateLayout)
	}
	fields := []struct{ name, value string }{
		{"validation_code", sub.ValidationCode},
		{"first_name", sub.FirstName},
		{"last_name", sub.LastName},
		{"email", sub.Email},
		{"event_id", strconv.FormatInt(sub.EventID, 10)},
		{"event_date", eventDate},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreateFormFile("certificate_image", sub.Filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(sub.Image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

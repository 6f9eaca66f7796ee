package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/BerylCAtieno/doc-vault-api/internal/utils"
)

// Client talks to the OCR sidecar (a tesseract HTTP server). OCR runs
// out-of-process: it is CPU-bound for seconds per page and scales
// independently of the workers.
type Client struct {
	endpoint string
	logger   *utils.Logger
	client   *http.Client
}

type ocrRequest struct {
	Image string `json:"image"`
}

type ocrResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func NewClient(endpoint string, timeout time.Duration, logger *utils.Logger) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		logger:   logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ImageToText runs OCR on a single image file and returns the recognized text.
func (c *Client) ImageToText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return c.recognize(ctx, data)
}

func (c *Client) recognize(ctx context.Context, image []byte) (string, error) {
	reqBody := ocrRequest{Image: base64.StdEncoding.EncodeToString(image)}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("OCR sidecar error", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("OCR sidecar returned status %d", resp.StatusCode)
	}

	var ocrResp ocrResponse
	if err := json.Unmarshal(body, &ocrResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if ocrResp.Error != "" {
		return "", fmt.Errorf("OCR error: %s", ocrResp.Error)
	}

	return ocrResp.Text, nil
}

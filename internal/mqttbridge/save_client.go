package mqttbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/accesslab/keybridge/internal/keybridge/types"
)

// SaveClient calls the persistence API that stores a newly enrolled
// tag. It authenticates with the pre-issued bridge key, never a user
// session.
type SaveClient struct {
	baseURL string
	key     string
	http    *http.Client
}

func NewSaveClient(baseURL, key string) *SaveClient {
	return &SaveClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SaveTag posts the enrolled tag. Non-2xx responses are returned as
// errors carrying the upstream message so the operator sees why the
// save was rejected. The call is not retried.
func (c *SaveClient) SaveTag(ctx context.Context, req types.SaveTagRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal save request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/tags/rfid/save", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build save request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Bridge-Key", c.key)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("save request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Pull the upstream error message out of the standard error body.
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("save rejected (%d): %s", resp.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("save rejected with status %d", resp.StatusCode)
}

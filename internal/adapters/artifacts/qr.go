// Package artifacts talks to the external artifact collaborator that renders
// verification QR codes. Callers treat every failure as non-critical.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type QRClient struct {
	baseURL string
	client  *http.Client
}

func NewQRClient(baseURL string) *QRClient {
	return &QRClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *QRClient) RequestQR(ctx context.Context, passportID uuid.UUID) error {
	body, err := json.Marshal(map[string]string{"passport_id": passportID.String()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/artifacts/qr", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("artifact service returned %d for passport %s", resp.StatusCode, passportID)
	}
	return nil
}

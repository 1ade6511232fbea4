package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jobsift/crawlworker/internal/signature"
)

// Forwarder relays verified crawl submissions to the legacy backend instead
// of processing them locally. Used while migrating traffic off the old
// service.
type Forwarder struct {
	client *http.Client
	url    string
	signer *signature.Verifier
}

// NewForwarder creates a Forwarder posting to the given URL, re-signing each
// body with the shared secret.
func NewForwarder(url string, signer *signature.Verifier) *Forwarder {
	return &Forwarder{
		client: &http.Client{Timeout: 15 * time.Second},
		url:    url,
		signer: signer,
	}
}

// Forward posts the already-verified raw body to the legacy backend.
func (f *Forwarder) Forward(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", f.signer.Sign(body))

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("forward crawl request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("legacy backend returned status %d", resp.StatusCode)
	}
	return nil
}

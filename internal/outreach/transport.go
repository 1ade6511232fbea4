package outreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jobsift/crawlworker/internal/crawl"
)

// Transport delivers one outreach message and returns provider metadata to
// attach to the log row.
type Transport interface {
	Send(ctx context.Context, msg crawl.OutreachMessage) (map[string]string, error)
}

// HTTPTransport posts messages to an external delivery provider as JSON.
type HTTPTransport struct {
	client *http.Client
	url    string
	apiKey string
	from   string
}

// HTTPTransportConfig configures the provider endpoint.
type HTTPTransportConfig struct {
	ProviderURL string
	APIKey      string
	From        string
	Timeout     time.Duration
}

// NewHTTPTransport creates an HTTPTransport.
func NewHTTPTransport(cfg HTTPTransportConfig) (*HTTPTransport, error) {
	if cfg.ProviderURL == "" {
		return nil, fmt.Errorf("outreach provider url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
		url:    cfg.ProviderURL,
		apiKey: cfg.APIKey,
		from:   cfg.From,
	}, nil
}

type providerPayload struct {
	From      string `json:"from,omitempty"`
	Recipient string `json:"recipient"`
	Channel   string `json:"channel"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body,omitempty"`
	MessageID string `json:"message_id"`
	LeadID    string `json:"lead_id,omitempty"`
}

type providerResponse struct {
	ProviderID string `json:"provider_id"`
}

// Send posts the message to the provider. Any non-2xx response is an error.
func (t *HTTPTransport) Send(ctx context.Context, msg crawl.OutreachMessage) (map[string]string, error) {
	body, err := json.Marshal(providerPayload{
		From:      t.from,
		Recipient: msg.Recipient,
		Channel:   msg.Channel,
		Subject:   msg.Subject,
		Body:      msg.Body,
		MessageID: msg.ID,
		LeadID:    msg.LeadID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode provider payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post to provider: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	meta := map[string]string{}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(respBody) > 0 {
		var decoded providerResponse
		if json.Unmarshal(respBody, &decoded) == nil && decoded.ProviderID != "" {
			meta["provider_id"] = decoded.ProviderID
		}
	}
	return meta, nil
}

// MemoryTransport records sends in memory for dev mode and tests. Recipients
// added to the failure set error out, to exercise the failed path.
type MemoryTransport struct {
	mu   sync.Mutex
	sent []crawl.OutreachMessage
	fail map[string]bool
}

// NewMemoryTransport creates an empty MemoryTransport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{fail: make(map[string]bool)}
}

// FailRecipient makes future sends to the recipient fail.
func (t *MemoryTransport) FailRecipient(recipient string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail[recipient] = true
}

// Send records the message or fails if the recipient is marked.
func (t *MemoryTransport) Send(_ context.Context, msg crawl.OutreachMessage) (map[string]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail[msg.Recipient] {
		return nil, fmt.Errorf("delivery to %s refused", msg.Recipient)
	}
	t.sent = append(t.sent, msg)
	return map[string]string{"provider_id": fmt.Sprintf("mem-%d", len(t.sent))}, nil
}

// Sent returns a snapshot of delivered messages.
func (t *MemoryTransport) Sent() []crawl.OutreachMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]crawl.OutreachMessage, len(t.sent))
	copy(out, t.sent)
	return out
}

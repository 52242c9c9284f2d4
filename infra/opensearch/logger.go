package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// GatewayEvent is one indexed gateway interaction: an outbound charge or
// transfer attempt, or an inbound webhook delivery. Raw provider payloads are
// indexed here instead of a debug table; credentials never appear in Detail.
type GatewayEvent struct {
	Timestamp     time.Time      `json:"timestamp"`
	Provider      string         `json:"provider"`
	EventType     string         `json:"event_type"` // charge, transfer, webhook
	CorrelationID string         `json:"correlation_id,omitempty"`
	Status        string         `json:"status"`
	AmountCents   int64          `json:"amount_cents,omitempty"`
	Endpoint      string         `json:"endpoint,omitempty"`
	HTTPStatus    int            `json:"http_status,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// Logger indexes gateway events and system logs in OpenSearch
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch event logger
func NewLogger(client *Client) *Logger {
	return &Logger{client: client}
}

// LogGatewayEvent indexes one gateway event in the provider's event index.
func (l *Logger) LogGatewayEvent(ctx context.Context, event GatewayEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal gateway event: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: l.client.EventIndexName(event.Provider),
		Body:  strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("index gateway event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index gateway event: %s", res.String())
	}

	return nil
}

// IndexSystemEvent indexes a structured system log entry. Implements the
// logger package's EventSink.
func (l *Logger) IndexSystemEvent(entry any) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal system event: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: l.client.SystemIndexName(),
		Body:  strings.NewReader(string(body)),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("index system event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index system event: %s", res.String())
	}

	return nil
}

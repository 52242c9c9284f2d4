package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pixloo/pixgate/infra/logger"
)

// HTTPRounds posts free-round grants to the game platform's reward endpoint.
type HTTPRounds struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPRounds(baseURL, token string) *HTTPRounds {
	return &HTTPRounds{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *HTTPRounds) TriggerFreeRounds(ctx context.Context, grant FreeRoundsGrant) error {
	body, err := json.Marshal(map[string]any{
		"username":  grant.Username,
		"game_code": grant.GameCode,
		"rounds":    grant.Rounds,
	})
	if err != nil {
		return fmt.Errorf("marshal grant: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/free-rounds", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("rounds service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("rounds service returned %d", resp.StatusCode)
	}
	return nil
}

// NoopRounds logs grants instead of delivering them. Used when no rounds
// service is configured.
type NoopRounds struct{}

func (NoopRounds) TriggerFreeRounds(_ context.Context, grant FreeRoundsGrant) error {
	logger.Info("Free rounds grant (no rounds service configured)", logger.LogContext{
		Fields: map[string]any{
			"username": grant.Username,
			"game":     grant.GameCode,
			"rounds":   grant.Rounds,
		},
	})
	return nil
}

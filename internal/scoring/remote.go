package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/shrikectl/shrike/internal/types"
)

// scoreRequest is the wire form sent to the remote scoring service.
type scoreRequest struct {
	Event       *types.Event `json:"event"`
	RecentCount int64        `json:"recent_count"`
	QuietHours  bool         `json:"quiet_hours"`
}

// RemoteOptions configures the HTTP contextual scorer.
type RemoteOptions struct {
	// BaseURL is the scoring service root; Score posts to
	// BaseURL + "/v1/score".
	BaseURL string
	// HTTPClient defaults to a client without its own timeout; each call
	// is bounded by its context.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Remote calls an external scoring service over HTTP. The service hosts
// the model; this client only carries the contract.
type Remote struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ ContextScorer = (*Remote)(nil)

// NewRemote creates the HTTP scorer client.
func NewRemote(opts RemoteOptions) *Remote {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remote{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  client,
		logger:  logger.Named("remote_scorer"),
	}
}

// Score implements ContextScorer.
func (r *Remote) Score(ctx context.Context, ev *types.Event, recentCount int64, quietHours bool) (Result, error) {
	body, err := json.Marshal(scoreRequest{Event: ev, RecentCount: recentCount, QuietHours: quietHours})
	if err != nil {
		return Result{}, fmt.Errorf("encoding score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("building score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling scoring service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("scoring service returned %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decoding score response: %w", err)
	}
	switch result.Action {
	case types.ActionNow, types.ActionLater, types.ActionNever:
	default:
		return Result{}, fmt.Errorf("scoring service returned unknown action %q", result.Action)
	}

	result.AIUsed = true
	result.FallbackMode = false
	return result, nil
}

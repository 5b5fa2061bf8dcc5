package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the market API.
type Config struct {
	APIURL    string // Base URL, e.g. "http://localhost:8080"
	Principal string // Caller's address, e.g. "0x..."
}

// MarketClient is a pure HTTP client for the breach market API.
type MarketClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewMarketClient creates a new client for the market platform.
func NewMarketClient(cfg Config) *MarketClient {
	return &MarketClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the platform and returns the response body.
func (c *MarketClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// GetProtocolRisk returns a protocol's risk score.
func (c *MarketClient) GetProtocolRisk(ctx context.Context, protocol string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/risk/"+url.PathEscape(protocol), nil, nil)
}

// GetPrediction returns a prediction by ID.
func (c *MarketClient) GetPrediction(ctx context.Context, id uint64) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/predictions/"+strconv.FormatUint(id, 10), nil, nil)
}

// GetWindowStatus returns a prediction's window state.
func (c *MarketClient) GetWindowStatus(ctx context.Context, id uint64) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/predictions/"+strconv.FormatUint(id, 10)+"/window", nil, nil)
}

// GetOracleStats returns an oracle's standing.
func (c *MarketClient) GetOracleStats(ctx context.Context, principal string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/oracles/"+principal, nil, nil)
}

// SubmitPrediction stakes a new prediction as the configured principal.
func (c *MarketClient) SubmitPrediction(ctx context.Context, targetProtocol, vulnType string, severity, aiConfidence, predictedLoss, stake uint64) (json.RawMessage, error) {
	body := map[string]any{
		"predictor":      c.cfg.Principal,
		"targetProtocol": targetProtocol,
		"vulnType":       vulnType,
		"severityScore":  severity,
		"aiConfidence":   aiConfidence,
		"predictedLoss":  predictedLoss,
		"stakeAmount":    stake,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/predictions", nil, body)
}

// ResolvePrediction resolves a prediction as the configured principal.
func (c *MarketClient) ResolvePrediction(ctx context.Context, id, actualLoss uint64, incidentConfirmed bool, verificationHash string) (json.RawMessage, error) {
	body := map[string]any{
		"resolutionOracle":  c.cfg.Principal,
		"actualLoss":        actualLoss,
		"incidentConfirmed": incidentConfirmed,
		"verificationHash":  verificationHash,
	}
	path := "/v1/predictions/" + strconv.FormatUint(id, 10) + "/resolve"
	return c.doRequest(ctx, http.MethodPost, path, nil, body)
}

// ClaimRewards drains the principal's unclaimed reward balance.
func (c *MarketClient) ClaimRewards(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/rewards/"+c.cfg.Principal+"/claim", nil, nil)
}

// EstimateReward previews the payout for a hypothetical accurate prediction.
func (c *MarketClient) EstimateReward(ctx context.Context, stake, severity, aiConfidence uint64) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("stake", strconv.FormatUint(stake, 10))
	q.Set("severity", strconv.FormatUint(severity, 10))
	q.Set("aiConfidence", strconv.FormatUint(aiConfidence, 10))
	return c.doRequest(ctx, http.MethodGet, "/v1/predictions/estimate", q, nil)
}

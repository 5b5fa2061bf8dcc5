package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	cfg := Config{
		APIURL:    ts.URL,
		Principal: "0xcaller",
	}
	client := NewMarketClient(cfg)
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Client tests
// ============================================================

func TestClient_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "already_resolved",
			"message": "prediction already resolved",
		})
	}))
	defer ts.Close()

	client := NewMarketClient(Config{APIURL: ts.URL, Principal: "0x1"})
	_, err := client.GetPrediction(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "already resolved")
}

func TestClient_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	client := NewMarketClient(Config{APIURL: ts.URL, Principal: "0x1"})
	_, err := client.GetPrediction(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_SubmitUsesConfiguredPrincipal(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"prediction":{"id":1,"resolutionHeight":2008}}`))
	}))
	defer ts.Close()

	client := NewMarketClient(Config{APIURL: ts.URL, Principal: "0xcaller"})
	_, err := client.SubmitPrediction(context.Background(), "aave-v3", "reentrancy", 80, 50, 10_000_000, 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, "0xcaller", gotBody["predictor"])
}

// ============================================================
// Handler tests
// ============================================================

func TestHandleGetProtocolRisk(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/risk/aave-v3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"risk":{"protocol":"aave-v3","currentRisk":42,"incidentsCount":2,"totalLosses":5000000}}`))
	})
	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetProtocolRisk(context.Background(), makeRequest(map[string]any{
		"protocol": "aave-v3",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "aave-v3")
	assert.Contains(t, text, "42/100")
	assert.Contains(t, text, "5.000000")
}

func TestHandleGetProtocolRisk_MissingArg(t *testing.T) {
	h, cleanup := newTestSetup(http.NewServeMux())
	defer cleanup()

	result, err := h.HandleGetProtocolRisk(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleGetPrediction_Unresolved(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/predictions/7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prediction":{"id":7,"predictor":"0xaaa","targetProtocol":"curve","vulnType":"oracle-manipulation","severityScore":90,"aiConfidence":70,"predictedLoss":20000000,"stakeAmount":5000000,"resolutionHeight":2008,"resolved":false}}`))
	})
	mux.HandleFunc("/v1/predictions/7/window", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"open":true,"heightsRemaining":500}`))
	})
	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetPrediction(context.Background(), makeRequest(map[string]any{
		"prediction_id": float64(7),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Prediction #7")
	assert.Contains(t, text, "curve")
	assert.Contains(t, text, "500 heights")
}

func TestHandleGetPrediction_Resolved(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/predictions/3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prediction":{"id":3,"predictor":"0xaaa","targetProtocol":"curve","vulnType":"reentrancy","severityScore":80,"aiConfidence":50,"predictedLoss":10000000,"stakeAmount":10000000,"resolved":true,"accurate":true}}`))
	})
	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetPrediction(context.Background(), makeRequest(map[string]any{
		"prediction_id": float64(3),
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "ACCURATE")
}

func TestHandleSubmitPrediction(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/predictions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"prediction":{"id":12,"resolutionHeight":3016}}`))
	})
	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleSubmitPrediction(context.Background(), makeRequest(map[string]any{
		"target_protocol": "aave-v3",
		"vuln_type":       "reentrancy",
		"severity_score":  float64(80),
		"ai_confidence":   float64(50),
		"predicted_loss":  float64(10_000_000),
		"stake_amount":    float64(10_000_000),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Prediction #12")
	assert.Contains(t, text, "height 3016")
}

func TestHandleSubmitPrediction_MissingArgs(t *testing.T) {
	h, cleanup := newTestSetup(http.NewServeMux())
	defer cleanup()

	result, err := h.HandleSubmitPrediction(context.Background(), makeRequest(map[string]any{
		"target_protocol": "aave-v3",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleResolvePrediction(t *testing.T) {
	var gotBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/predictions/5/resolve", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"prediction":{"accurate":true},"outcome":{}}`))
	})
	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleResolvePrediction(context.Background(), makeRequest(map[string]any{
		"prediction_id":      float64(5),
		"actual_loss":        float64(9_500_000),
		"incident_confirmed": true,
		"verification_hash":  "a3f5c1d2e4b6a8c0d2e4f6a8b0c2d4e6f8a0b2c4d6e8f0a2b4c6d8e0f2a4b6c8",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	assert.Equal(t, "0xcaller", gotBody["resolutionOracle"])
	assert.Equal(t, true, gotBody["incidentConfirmed"])
	assert.Contains(t, resultText(t, result), "ACCURATE")
}

func TestHandleClaimRewards(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/rewards/0xcaller/claim", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"claimed":12000000}`))
	})
	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleClaimRewards(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "12.000000")
}

func TestHandleClaimRewards_NothingToClaim(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/rewards/0xcaller/claim", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"nothing_to_claim","message":"nothing to claim"}`))
	})
	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleClaimRewards(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "nothing to claim")
}

func TestHandleEstimateReward(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/predictions/estimate", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10000000", r.URL.Query().Get("stake"))
		_, _ = w.Write([]byte(`{"reward":12000000}`))
	})
	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleEstimateReward(context.Background(), makeRequest(map[string]any{
		"stake_amount":   float64(10_000_000),
		"severity_score": float64(80),
		"ai_confidence":  float64(50),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "12.000000")
}

// ============================================================
// Helper tests
// ============================================================

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "0.000000", formatUnits(0))
	assert.Equal(t, "1.000000", formatUnits(1_000_000))
	assert.Equal(t, "12.345678", formatUnits(12_345_678))
	assert.Equal(t, "0.000001", formatUnits(1))
}

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *MarketClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *MarketClient) *Handlers {
	return &Handlers{client: client}
}

// HandleGetProtocolRisk returns a protocol's risk score.
func (h *Handlers) HandleGetProtocolRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	protocol := req.GetString("protocol", "")
	if protocol == "" {
		return mcp.NewToolResultError("protocol is required"), nil
	}

	raw, err := h.client.GetProtocolRisk(ctx, protocol)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get protocol risk: %v", err)), nil
	}

	var resp struct {
		Risk struct {
			Protocol       string `json:"protocol"`
			CurrentRisk    uint64 `json:"currentRisk"`
			IncidentsCount uint64 `json:"incidentsCount"`
			TotalLosses    uint64 `json:"totalLosses"`
		} `json:"risk"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse risk: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Protocol: %s\n", resp.Risk.Protocol)
	fmt.Fprintf(&sb, "Risk score: %d/100\n", resp.Risk.CurrentRisk)
	fmt.Fprintf(&sb, "Confirmed incidents: %d\n", resp.Risk.IncidentsCount)
	fmt.Fprintf(&sb, "Cumulative losses: %s\n", formatUnits(resp.Risk.TotalLosses))
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetPrediction looks up a prediction and its window status.
func (h *Handlers) HandleGetPrediction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := uintArg(req, "prediction_id")
	if !ok {
		return mcp.NewToolResultError("prediction_id must be a positive number"), nil
	}

	raw, err := h.client.GetPrediction(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get prediction: %v", err)), nil
	}

	var resp struct {
		Prediction struct {
			ID               uint64 `json:"id"`
			Predictor        string `json:"predictor"`
			TargetProtocol   string `json:"targetProtocol"`
			VulnType         string `json:"vulnType"`
			SeverityScore    uint64 `json:"severityScore"`
			AIConfidence     uint64 `json:"aiConfidence"`
			PredictedLoss    uint64 `json:"predictedLoss"`
			StakeAmount      uint64 `json:"stakeAmount"`
			ResolutionHeight uint64 `json:"resolutionHeight"`
			Resolved         bool   `json:"resolved"`
			Accurate         bool   `json:"accurate"`
		} `json:"prediction"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse prediction: %v", err)), nil
	}
	p := resp.Prediction

	var sb strings.Builder
	fmt.Fprintf(&sb, "Prediction #%d\n", p.ID)
	fmt.Fprintf(&sb, "Predictor: %s\n", p.Predictor)
	fmt.Fprintf(&sb, "Target: %s (%s)\n", p.TargetProtocol, p.VulnType)
	fmt.Fprintf(&sb, "Severity: %d/100, AI confidence: %d/100\n", p.SeverityScore, p.AIConfidence)
	fmt.Fprintf(&sb, "Predicted loss: %s\n", formatUnits(p.PredictedLoss))
	fmt.Fprintf(&sb, "Stake: %s\n", formatUnits(p.StakeAmount))

	if p.Resolved {
		verdict := "inaccurate"
		if p.Accurate {
			verdict = "ACCURATE"
		}
		fmt.Fprintf(&sb, "Status: resolved (%s)\n", verdict)
	} else if windowRaw, err := h.client.GetWindowStatus(ctx, id); err == nil {
		var window struct {
			Open             bool   `json:"open"`
			HeightsRemaining uint64 `json:"heightsRemaining"`
		}
		if json.Unmarshal(windowRaw, &window) == nil {
			if window.Open {
				fmt.Fprintf(&sb, "Status: open, %d heights until resolvable\n", window.HeightsRemaining)
			} else {
				sb.WriteString("Status: window closed, awaiting resolution\n")
			}
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetOracleStats returns an oracle's standing.
func (h *Handlers) HandleGetOracleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	principal := req.GetString("principal", "")
	if principal == "" {
		return mcp.NewToolResultError("principal is required"), nil
	}

	raw, err := h.client.GetOracleStats(ctx, principal)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get oracle stats: %v", err)), nil
	}

	var resp struct {
		Oracle struct {
			Principal           string `json:"principal"`
			ReputationScore     int    `json:"reputationScore"`
			TotalPredictions    uint64 `json:"totalPredictions"`
			AccuratePredictions uint64 `json:"accuratePredictions"`
			IsActive            bool   `json:"isActive"`
		} `json:"oracle"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse oracle: %v", err)), nil
	}
	o := resp.Oracle

	status := "active"
	if !o.IsActive {
		status = "revoked"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Oracle: %s (%s)\n", o.Principal, status)
	fmt.Fprintf(&sb, "Reputation: %d/100\n", o.ReputationScore)
	fmt.Fprintf(&sb, "Predictions: %d accurate of %d resolved\n", o.AccuratePredictions, o.TotalPredictions)
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleSubmitPrediction stakes a new prediction.
func (h *Handlers) HandleSubmitPrediction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	targetProtocol := req.GetString("target_protocol", "")
	vulnType := req.GetString("vuln_type", "")
	if targetProtocol == "" || vulnType == "" {
		return mcp.NewToolResultError("target_protocol and vuln_type are required"), nil
	}

	severity, ok1 := uintArg(req, "severity_score")
	confidence, ok2 := uintArg(req, "ai_confidence")
	loss, ok3 := uintArg(req, "predicted_loss")
	stake, ok4 := uintArg(req, "stake_amount")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return mcp.NewToolResultError("severity_score, ai_confidence, predicted_loss and stake_amount must be positive numbers"), nil
	}

	raw, err := h.client.SubmitPrediction(ctx, targetProtocol, vulnType, severity, confidence, loss, stake)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Submission failed: %v", err)), nil
	}

	var resp struct {
		Prediction struct {
			ID               uint64 `json:"id"`
			ResolutionHeight uint64 `json:"resolutionHeight"`
		} `json:"prediction"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse prediction: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Prediction #%d submitted.\n"+
			"Stake of %s moved to escrow.\n"+
			"Resolvable at height %d.",
		resp.Prediction.ID, formatUnits(stake), resp.Prediction.ResolutionHeight)), nil
}

// HandleResolvePrediction resolves a prediction.
func (h *Handlers) HandleResolvePrediction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := uintArg(req, "prediction_id")
	if !ok {
		return mcp.NewToolResultError("prediction_id must be a positive number"), nil
	}
	hash := req.GetString("verification_hash", "")
	if hash == "" {
		return mcp.NewToolResultError("verification_hash is required"), nil
	}
	actualLoss := uint64(req.GetFloat("actual_loss", 0))
	confirmed := req.GetBool("incident_confirmed", false)

	raw, err := h.client.ResolvePrediction(ctx, id, actualLoss, confirmed, hash)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Resolution failed: %v", err)), nil
	}

	var resp struct {
		Prediction struct {
			Accurate bool `json:"accurate"`
		} `json:"prediction"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse resolution: %v", err)), nil
	}

	verdict := "inaccurate — no reward, predictor reputation penalized"
	if resp.Prediction.Accurate {
		verdict = "ACCURATE — reward accrued to the predictor"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Prediction #%d resolved: %s.", id, verdict)), nil
}

// HandleClaimRewards drains the caller's unclaimed balance.
func (h *Handlers) HandleClaimRewards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ClaimRewards(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Claim failed: %v", err)), nil
	}

	var resp struct {
		Claimed uint64 `json:"claimed"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse claim: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Claimed %s.", formatUnits(resp.Claimed))), nil
}

// HandleEstimateReward previews a payout.
func (h *Handlers) HandleEstimateReward(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stake, ok1 := uintArg(req, "stake_amount")
	severity, ok2 := uintArg(req, "severity_score")
	confidence, ok3 := uintArg(req, "ai_confidence")
	if !ok1 || !ok2 || !ok3 {
		return mcp.NewToolResultError("stake_amount, severity_score and ai_confidence must be positive numbers"), nil
	}

	raw, err := h.client.EstimateReward(ctx, stake, severity, confidence)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Estimate failed: %v", err)), nil
	}

	var resp struct {
		Reward uint64 `json:"reward"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse estimate: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"An accurate prediction staking %s at severity %d with AI confidence %d pays %s.",
		formatUnits(stake), severity, confidence, formatUnits(resp.Reward))), nil
}

// uintArg reads a positive numeric tool argument.
func uintArg(req mcp.CallToolRequest, name string) (uint64, bool) {
	v := req.GetFloat(name, -1)
	if v < 0 {
		return 0, false
	}
	return uint64(v), true
}

// formatUnits renders a smallest-unit amount with 6 decimal places.
func formatUnits(units uint64) string {
	return fmt.Sprintf("%d.%06d", units/1_000_000, units%1_000_000)
}

package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the breach market MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetProtocolRisk = mcp.NewTool("get_protocol_risk",
	mcp.WithDescription(
		"Get the current security risk score (0-100) for a protocol, along with "+
			"its confirmed incident count and cumulative losses. "+
			"Unknown protocols report a zero score."),
	mcp.WithString("protocol",
		mcp.Required(),
		mcp.Description("Protocol identifier (e.g. 'aave-v3', 'curve')")),
)

var ToolGetPrediction = mcp.NewTool("get_prediction",
	mcp.WithDescription(
		"Look up a breach prediction by ID: predictor, target protocol, severity, "+
			"stake, resolution window status, and the outcome if resolved."),
	mcp.WithNumber("prediction_id",
		mcp.Required(),
		mcp.Description("The prediction's numeric ID")),
)

var ToolGetOracleStats = mcp.NewTool("get_oracle_stats",
	mcp.WithDescription(
		"Get an oracle's standing: reputation score (0-100), total and accurate "+
			"prediction counts, and whether it is still active."),
	mcp.WithString("principal",
		mcp.Required(),
		mcp.Description("The oracle's address (e.g. '0x1234...')")),
)

var ToolSubmitPrediction = mcp.NewTool("submit_prediction",
	mcp.WithDescription(
		"Stake a new breach prediction against a protocol. Your stake moves to "+
			"escrow until the prediction resolves; accurate predictions earn a reward "+
			"scaled by severity and AI confidence. You must be a registered oracle."),
	mcp.WithString("target_protocol",
		mcp.Required(),
		mcp.Description("Protocol the prediction targets (e.g. 'aave-v3')")),
	mcp.WithString("vuln_type",
		mcp.Required(),
		mcp.Description("Vulnerability class (e.g. 'reentrancy', 'oracle-manipulation')")),
	mcp.WithNumber("severity_score",
		mcp.Required(),
		mcp.Description("Predicted severity, 0-100")),
	mcp.WithNumber("ai_confidence",
		mcp.Required(),
		mcp.Description("AI model confidence in the prediction, 0-100")),
	mcp.WithNumber("predicted_loss",
		mcp.Required(),
		mcp.Description("Predicted loss in smallest units (6 decimals), must be positive")),
	mcp.WithNumber("stake_amount",
		mcp.Required(),
		mcp.Description("Stake in smallest units; must meet the market minimum")),
)

var ToolResolvePrediction = mcp.NewTool("resolve_prediction",
	mcp.WithDescription(
		"Resolve a prediction whose window has closed. Requires a verification hash "+
			"of the incident evidence. The prediction is accurate only if the incident "+
			"is confirmed and the actual loss is within 20% of the predicted loss."),
	mcp.WithNumber("prediction_id",
		mcp.Required(),
		mcp.Description("The prediction to resolve")),
	mcp.WithNumber("actual_loss",
		mcp.Required(),
		mcp.Description("Observed loss in smallest units (0 if no incident)")),
	mcp.WithBoolean("incident_confirmed",
		mcp.Required(),
		mcp.Description("Whether a security incident was confirmed for the target protocol")),
	mcp.WithString("verification_hash",
		mcp.Required(),
		mcp.Description("64-char hex digest of the incident evidence")),
)

var ToolClaimRewards = mcp.NewTool("claim_rewards",
	mcp.WithDescription(
		"Claim your accrued prediction rewards. Drains your entire unclaimed "+
			"balance out of escrow in one transfer."),
)

var ToolEstimateReward = mcp.NewTool("estimate_reward",
	mcp.WithDescription(
		"Estimate the payout for an accurate prediction before staking: "+
			"stake scaled by severity, then boosted by AI confidence."),
	mcp.WithNumber("stake_amount",
		mcp.Required(),
		mcp.Description("Stake in smallest units")),
	mcp.WithNumber("severity_score",
		mcp.Required(),
		mcp.Description("Severity, 0-100")),
	mcp.WithNumber("ai_confidence",
		mcp.Required(),
		mcp.Description("AI confidence, 0-100")),
)

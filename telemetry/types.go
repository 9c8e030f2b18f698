// Package telemetry implements the node's typed telemetry event stream:
// persistence plus fan-out to live subscribers.
package telemetry

// Type enumerates the telemetry record kinds a node can emit.
type Type string

const (
	TypePacketReceived            Type = "PACKET_RECEIVED"
	TypePacketForwarded           Type = "PACKET_FORWARDED"
	TypeAccountBalance            Type = "ACCOUNT_BALANCE"
	TypeSettlementTriggered       Type = "SETTLEMENT_TRIGGERED"
	TypeSettlementCompleted       Type = "SETTLEMENT_COMPLETED"
	TypeAgentChannelOpened        Type = "AGENT_CHANNEL_OPENED"
	TypeAgentChannelBalanceUpdate Type = "AGENT_CHANNEL_BALANCE_UPDATE"
	TypeAgentChannelPaymentSent   Type = "AGENT_CHANNEL_PAYMENT_SENT"
	TypeAgentChannelClosed        Type = "AGENT_CHANNEL_CLOSED"
	TypePaymentChannelOpened      Type = "PAYMENT_CHANNEL_OPENED"
	TypePaymentChannelBalance     Type = "PAYMENT_CHANNEL_BALANCE_UPDATE"
	TypePaymentChannelSettled     Type = "PAYMENT_CHANNEL_SETTLED"
	TypeXRPChannelOpened          Type = "XRP_CHANNEL_OPENED"
	TypeXRPChannelClaimed         Type = "XRP_CHANNEL_CLAIMED"
	TypeXRPChannelClosed          Type = "XRP_CHANNEL_CLOSED"
	TypeAITokenUsage              Type = "AI_TOKEN_USAGE"
	TypeAIBudgetWarning           Type = "AI_BUDGET_WARNING"
	TypeAIBudgetExhausted         Type = "AI_BUDGET_EXHAUSTED"
	TypeWalletBalanceMismatch     Type = "WALLET_BALANCE_MISMATCH"
	TypeRateLimitExceeded         Type = "RATE_LIMIT_EXCEEDED"
)

// terminal reports whether a telemetry type represents a terminal channel
// event; the store's back-pressure policy waits up to one second to
// deliver these to a slow subscriber instead of dropping them at once.
func (t Type) terminal() bool {
	switch t {
	case TypeAgentChannelClosed, TypePaymentChannelSettled, TypeXRPChannelClosed,
		TypeXRPChannelClaimed, TypeSettlementCompleted:
		return true
	default:
		return false
	}
}

// Event is one telemetry record. Fields carries the type-specific payload;
// every record also carries Type, Timestamp (unix ms) and NodeID.
type Event struct {
	Type      Type                   `json:"type"`
	Timestamp int64                  `json:"timestamp"`
	NodeID    string                 `json:"nodeId"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

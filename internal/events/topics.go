package events

// Topic constants for domain events emitted by the register.
const (
	TopicSettlementCompleted = "settlement.completed"
	TopicSettlementReturned  = "settlement.returned"
	TopicShiftClosed         = "shift.closed"
	TopicStockLow            = "stock.low"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicSettlementCompleted,
		TopicSettlementReturned,
		TopicShiftClosed,
		TopicStockLow,
	}
}

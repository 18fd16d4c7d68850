package events

const (
	TopicPaymentVerified = "payment.verified"
	TopicOrderPaid       = "order.paid"
	TopicOrderRefunded   = "order.refunded"
	TopicPayoutUpdated   = "payout.updated"
)

// PartitionKey keeps every event of one order (or payout) on one partition, in order.
func PartitionKey(id string) []byte { return []byte(id) }

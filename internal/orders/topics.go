package orders

const (
	TopicOrderCreated = "order.created"
	TopicOrderStatus  = "order.status"
	TopicOrderRewards = "order.rewards"
)

// Topics lists everything the notification relay subscribes to.
var Topics = []string{TopicOrderCreated, TopicOrderStatus, TopicOrderRewards}

// Partition key = order id, so every event of one order stays in order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

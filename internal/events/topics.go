package events

// Topic constants for configuration changes emitted by the admin surface.
const (
	TopicPromotionCreated = "promotion.created"
	TopicPromotionUpdated = "promotion.updated"
	TopicContractCreated  = "customer_pricing.created"
	TopicContractUpdated  = "customer_pricing.updated"
)

package common

type EventType string

const (
	MessageCreatedType EventType = "message"
)

// DeliveryOutcome records what happened when a live push was attempted.
type DeliveryOutcome string

const (
	OutcomePushed  DeliveryOutcome = "pushed"
	OutcomeOffline DeliveryOutcome = "offline"
	OutcomeFailed  DeliveryOutcome = "failed"
)

type DeliveryEvent struct {
	Type        EventType
	RecipientID string
	Outcome     DeliveryOutcome
	Err         error
}

// Envelope is the frame written to a live connection.
type Envelope struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

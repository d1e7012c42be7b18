package domain

// DeliveryOutcome is the result of a notification attempt. Err is set when
// Sent is false because of a rejected recipient or a delivery failure.
type DeliveryOutcome struct {
	Sent bool
	Err  error
}

// DeliveryRecord is the audit entry persisted for each delivery attempt.
type DeliveryRecord struct {
	PK          string
	SK          string
	ID          string
	ResponseID  string
	ModelID     string
	Recipient   string
	Status      string
	Error       string
	AttemptedAt string
	TTL         int64
}

package models

// DeliveryState is the per-certificate delivery state.
type DeliveryState string

const (
	StatePending   DeliveryState = "pending"
	StateDelivered DeliveryState = "delivered"
	StateFailed    DeliveryState = "failed"
)

// OutcomeRecord is emitted once per participant and sent in batch to the
// notification channel.
type OutcomeRecord struct {
	OrderID        int64  `json:"order_id"`
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Email          string `json:"email"`
	CertificateKey string `json:"certificate_key"`
	ValidationCode string `json:"validation_code,omitempty"`
	Success        bool   `json:"success"`
	Skipped        bool   `json:"skipped,omitempty"`
	Error          string `json:"error,omitempty"`
}

// NewOutcome prefills the identifying fields of an outcome for p.
func NewOutcome(p *Participant) OutcomeRecord {
	out := OutcomeRecord{
		Email:          p.Email,
		ValidationCode: p.FormattedValidationCode(),
	}
	if p.Event != nil {
		out.OrderID = p.Event.OrderID
		out.ProductID = p.Event.ProductID
		out.ProductName = p.Event.ProductName
	}
	return out
}

// Fail marks the outcome as failed with err.
func (o *OutcomeRecord) Fail(err error) {
	o.Success = false
	if err != nil {
		o.Error = err.Error()
	}
}

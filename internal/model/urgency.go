package model

type UrgencyState string

const (
	UrgencyCompleted UrgencyState = "completed"
	UrgencyOverdue   UrgencyState = "overdue"
	UrgencyDueSoon   UrgencyState = "due_soon"
	UrgencyNormal    UrgencyState = "normal"
)

// Urgency is the scorer's verdict for a single task. It is derived on demand and
// never stored.
type Urgency struct {
	State      UrgencyState `json:"state"`
	Score      int          `json:"score"`
	DaysLate   int          `json:"days_late"`
	HasDueDate bool         `json:"has_due_date"`
}

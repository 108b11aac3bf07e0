package crowd

import "time"

// Reasons explain why a result is not a full computation.
const (
	ReasonNoOpenRides         = "no_open_rides"
	ReasonInsufficientHistory = "insufficient_history"
	ReasonTimeout             = "timeout"
	ReasonCanceled            = "canceled"
	ReasonStoreError          = "store_error"
)

// Result is the crowd level of a park at CalculatedAt.
type Result struct {
	ParkID             uint      `json:"park_id"`
	Level              int       `json:"level"`
	Label              string    `json:"label"`
	RidesUsed          int       `json:"rides_used"`
	TotalRides         int       `json:"total_rides"`
	HistoricalBaseline float64   `json:"historical_baseline"`
	CurrentAverage     float64   `json:"current_average"`
	Confidence         int       `json:"confidence"`
	CalculatedAt       time.Time `json:"calculated_at"`
	// Reason is empty for a full computation.
	Reason string `json:"reason,omitempty"`
}

// defaultResult is returned when no level can be computed.
func defaultResult(parkID uint, at time.Time, reason string) Result {
	return Result{
		ParkID:       parkID,
		Level:        0,
		Label:        LabelVeryLow,
		Confidence:   0,
		CalculatedAt: at,
		Reason:       reason,
	}
}

// IsDefault reports whether r is a fallback result rather than a computation.
func (r Result) IsDefault() bool {
	return r.Reason != "" && r.Reason != ReasonInsufficientHistory
}

package entities

import "time"

// AlertSource names the dashboard panel that raised an alert
type AlertSource string

const (
	AlertSourceICU   AlertSource = "icu"
	AlertSourceStaff AlertSource = "staff"
	AlertSourceLoad  AlertSource = "emergency_load"
	AlertSourceBatch AlertSource = "batch"
)

// AlertEvent is published when a prediction lands in the HIGH band
type AlertEvent struct {
	ID       string      `json:"id"`
	Source   AlertSource `json:"source"`
	Level    RiskLevel   `json:"level"`
	Message  string      `json:"message"`
	Value    float64     `json:"value"`
	RaisedAt time.Time   `json:"raised_at"`
}

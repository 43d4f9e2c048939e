package models

import "time"

type EventType string

const (
	EventTypeInstanceCreated     EventType = "instance_created"
	EventTypeInstanceRemoved     EventType = "instance_removed"
	EventTypeInstanceMaintenance EventType = "instance_maintenance"
	EventTypeSessionAcquired     EventType = "session_acquired"
	EventTypeSessionReleased     EventType = "session_released"
	EventTypeScalingDecision     EventType = "scaling_decision"
	EventTypeScaledUp            EventType = "scaled_up"
	EventTypeScaledDown          EventType = "scaled_down"
	EventTypeScalingRejected     EventType = "scaling_rejected"
	EventTypeCircuitOpened       EventType = "circuit_opened"
	EventTypeCircuitClosed       EventType = "circuit_closed"
	EventTypePerformanceIssue    EventType = "performance_issue"
	EventTypeBudgetAlert         EventType = "budget_alert"
	EventTypeError               EventType = "error"
)

type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// Event is an internal farm notification delivered over the event bus.
type Event struct {
	ID         string        `json:"id"`
	Type       EventType     `json:"type"`
	Severity   EventSeverity `json:"severity"`
	InstanceID string        `json:"instance_id,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Message    string        `json:"message"`
	Data       interface{}   `json:"data,omitempty"`
}

func NewEvent(eventType EventType, instanceID, message string) *Event {
	return &Event{
		ID:         NewUUID(),
		Type:       eventType,
		Severity:   SeverityInfo,
		InstanceID: instanceID,
		Timestamp:  time.Now(),
		Message:    message,
	}
}

func (e *Event) WithSeverity(severity EventSeverity) *Event {
	e.Severity = severity
	return e
}

func (e *Event) WithData(data interface{}) *Event {
	e.Data = data
	return e
}

package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/scraperfleet/browserfarm/internal/logger"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

// EventBridge forwards farm events from the internal bus to WebSocket
// clients.
type EventBridge struct {
	hub        *Hub
	eventsChan <-chan *models.Event
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewEventBridge(hub *Hub, eventsChan <-chan *models.Event) *EventBridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventBridge{
		hub:        hub,
		eventsChan: eventsChan,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (b *EventBridge) Start() {
	go b.run()
	logger.Info("WebSocket event bridge started")
}

func (b *EventBridge) Stop() {
	b.cancel()
	logger.Info("WebSocket event bridge stopped")
}

func (b *EventBridge) run() {
	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-b.eventsChan:
			if !ok {
				logger.Info("Event channel closed, stopping bridge")
				return
			}
			b.forwardEvent(event)
		}
	}
}

// FarmEvent is the message format sent to WebSocket clients.
type FarmEvent struct {
	Type       string      `json:"type"`
	InstanceID string      `json:"instance_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Severity   string      `json:"severity,omitempty"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

func (b *EventBridge) forwardEvent(event *models.Event) {
	wsType := mapEventType(event.Type)
	if wsType == "" {
		return
	}

	msg := &FarmEvent{
		Type:       wsType,
		InstanceID: event.InstanceID,
		Timestamp:  event.Timestamp,
		Severity:   string(event.Severity),
		Message:    event.Message,
		Data:       event.Data,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	b.hub.BroadcastEvent(wsType, data)
}

func mapEventType(eventType models.EventType) string {
	switch eventType {
	case models.EventTypeInstanceCreated, models.EventTypeInstanceRemoved, models.EventTypeInstanceMaintenance:
		return "instance_update"
	case models.EventTypeScalingDecision:
		return "decision"
	case models.EventTypeScaledUp, models.EventTypeScaledDown, models.EventTypeScalingRejected:
		return "scaling_event"
	case models.EventTypeCircuitOpened, models.EventTypeCircuitClosed:
		return "circuit_update"
	case models.EventTypePerformanceIssue, models.EventTypeBudgetAlert:
		return "alert"
	case models.EventTypeError:
		return "error"
	default:
		// Session-level events are too chatty to broadcast.
		return ""
	}
}

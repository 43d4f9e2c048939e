package events

import (
	"github.com/scraperfleet/browserfarm/pkg/models"
)

// Publisher is the typed facade over the bus; every notification the farm
// emits goes through one of these methods so payload shapes stay uniform.
type Publisher struct {
	bus *EventBus
}

func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) InstanceCreated(instance models.BrowserInstance) {
	event := models.NewEvent(models.EventTypeInstanceCreated, instance.ID, "Instance created").
		WithData(instance)
	p.bus.Publish(event)
}

func (p *Publisher) InstanceRemoved(instanceID, reason string) {
	event := models.NewEvent(models.EventTypeInstanceRemoved, instanceID, "Instance removed").
		WithData(map[string]interface{}{"reason": reason})
	p.bus.Publish(event)
}

func (p *Publisher) InstanceMaintenance(instanceID, reason string) {
	event := models.NewEvent(models.EventTypeInstanceMaintenance, instanceID, "Instance entering maintenance").
		WithSeverity(models.SeverityWarning).
		WithData(map[string]interface{}{"reason": reason})
	p.bus.Publish(event)
}

func (p *Publisher) SessionAcquired(session *models.Session) {
	event := models.NewEvent(models.EventTypeSessionAcquired, session.InstanceID, "Session acquired").
		WithData(session)
	p.bus.Publish(event)
}

func (p *Publisher) SessionReleased(session *models.Session) {
	event := models.NewEvent(models.EventTypeSessionReleased, session.InstanceID, "Session released").
		WithData(session)
	p.bus.Publish(event)
}

func (p *Publisher) ScalingDecision(decision *models.ScalingDecision) {
	msg := "Scaling decision: " + string(decision.Action)
	event := models.NewEvent(models.EventTypeScalingDecision, "", msg).
		WithData(decision)
	p.bus.Publish(event)
}

func (p *Publisher) ScaledUp(added []string, decision *models.ScalingDecision) {
	event := models.NewEvent(models.EventTypeScaledUp, "", "Fleet scaled up").
		WithData(map[string]interface{}{
			"instances": added,
			"decision":  decision,
		})
	p.bus.Publish(event)
}

func (p *Publisher) ScaledDown(removed []string, decision *models.ScalingDecision) {
	event := models.NewEvent(models.EventTypeScaledDown, "", "Fleet scaled down").
		WithData(map[string]interface{}{
			"instances": removed,
			"decision":  decision,
		})
	p.bus.Publish(event)
}

func (p *Publisher) ScalingRejected(decision *models.ScalingDecision, reason string) {
	event := models.NewEvent(models.EventTypeScalingRejected, "", "Scaling rejected: "+reason).
		WithSeverity(models.SeverityWarning).
		WithData(decision)
	p.bus.Publish(event)
}

func (p *Publisher) CircuitOpened(domain, fromState string) {
	event := models.NewEvent(models.EventTypeCircuitOpened, "", "Circuit opened for "+domain).
		WithSeverity(models.SeverityWarning).
		WithData(map[string]interface{}{
			"domain":     domain,
			"from_state": fromState,
		})
	p.bus.Publish(event)
}

func (p *Publisher) CircuitClosed(domain string) {
	event := models.NewEvent(models.EventTypeCircuitClosed, "", "Circuit closed for "+domain).
		WithData(map[string]interface{}{"domain": domain})
	p.bus.Publish(event)
}

func (p *Publisher) PerformanceIssue(instanceID, detail string, perf models.InstancePerformance) {
	event := models.NewEvent(models.EventTypePerformanceIssue, instanceID, detail).
		WithSeverity(models.SeverityWarning).
		WithData(perf)
	p.bus.Publish(event)
}

func (p *Publisher) BudgetAlert(summary models.CostSummary, message string) {
	event := models.NewEvent(models.EventTypeBudgetAlert, "", message).
		WithSeverity(models.SeverityCritical).
		WithData(summary)
	p.bus.Publish(event)
}

func (p *Publisher) Error(instanceID, message string, err error) {
	event := models.NewEvent(models.EventTypeError, instanceID, message).
		WithSeverity(models.SeverityCritical).
		WithData(map[string]interface{}{"error": err.Error()})
	p.bus.Publish(event)
}

package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scraperfleet/browserfarm/internal/events"
	"github.com/scraperfleet/browserfarm/pkg/models"
)

func receive(t *testing.T, ch <-chan *models.Event) *models.Event {
	t.Helper()
	select {
	case event := <-ch:
		require.NotNil(t, event)
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestEventBus_SubscribeByType(t *testing.T) {
	bus := events.NewEventBus(8)
	defer bus.Close()

	created := bus.Subscribe(models.EventTypeInstanceCreated)
	removed := bus.Subscribe(models.EventTypeInstanceRemoved)

	bus.Publish(models.NewEvent(models.EventTypeInstanceCreated, "i-1", "Instance created"))

	event := receive(t, created)
	assert.Equal(t, models.EventTypeInstanceCreated, event.Type)
	assert.Equal(t, "i-1", event.InstanceID)

	select {
	case e := <-removed:
		t.Fatalf("unrelated subscriber received %v", e.Type)
	default:
	}
}

func TestEventBus_SubscribeAllSeesEveryType(t *testing.T) {
	bus := events.NewEventBus(8)
	defer bus.Close()

	all := bus.SubscribeAll()

	bus.Publish(models.NewEvent(models.EventTypeInstanceCreated, "i-1", "created"))
	bus.Publish(models.NewEvent(models.EventTypeBudgetAlert, "", "budget"))
	bus.Publish(models.NewEvent(models.EventTypeCircuitOpened, "", "circuit"))

	assert.Equal(t, models.EventTypeInstanceCreated, receive(t, all).Type)
	assert.Equal(t, models.EventTypeBudgetAlert, receive(t, all).Type)
	assert.Equal(t, models.EventTypeCircuitOpened, receive(t, all).Type)
}

func TestEventBus_MultipleSubscribersEachReceive(t *testing.T) {
	bus := events.NewEventBus(8)
	defer bus.Close()

	a := bus.Subscribe(models.EventTypeScaledUp)
	b := bus.Subscribe(models.EventTypeScaledUp)

	bus.Publish(models.NewEvent(models.EventTypeScaledUp, "", "scaled"))

	assert.Equal(t, models.EventTypeScaledUp, receive(t, a).Type)
	assert.Equal(t, models.EventTypeScaledUp, receive(t, b).Type)
}

func TestEventBus_DropsWhenSubscriberFull(t *testing.T) {
	bus := events.NewEventBus(1)
	defer bus.Close()

	ch := bus.Subscribe(models.EventTypeError)

	// Second publish must not block even though nobody is draining.
	done := make(chan struct{})
	go func() {
		bus.Publish(models.NewEvent(models.EventTypeError, "", "first"))
		bus.Publish(models.NewEvent(models.EventTypeError, "", "second"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Equal(t, "first", receive(t, ch).Message)
	select {
	case e := <-ch:
		t.Fatalf("overflow event %q should have been dropped", e.Message)
	default:
	}
}

func TestEventBus_CloseIsIdempotent(t *testing.T) {
	bus := events.NewEventBus(4)
	ch := bus.Subscribe(models.EventTypeError)

	bus.Close()
	bus.Close()

	_, open := <-ch
	assert.False(t, open, "subscriber channel should be closed")

	// Publishing after close is a no-op.
	bus.Publish(models.NewEvent(models.EventTypeError, "", "late"))
}

func TestPublisher_PayloadShapes(t *testing.T) {
	bus := events.NewEventBus(16)
	defer bus.Close()
	pub := events.NewPublisher(bus)

	all := bus.SubscribeAll()

	pub.InstanceMaintenance("i-1", "error rate exceeded")
	event := receive(t, all)
	assert.Equal(t, models.EventTypeInstanceMaintenance, event.Type)
	assert.Equal(t, models.SeverityWarning, event.Severity)
	assert.Equal(t, "i-1", event.InstanceID)

	pub.CircuitOpened("shop.example.com", "closed")
	event = receive(t, all)
	assert.Equal(t, models.EventTypeCircuitOpened, event.Type)
	data, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "shop.example.com", data["domain"])
	assert.Equal(t, "closed", data["from_state"])

	pub.BudgetAlert(models.CostSummary{CurrentHourlyCost: 9.5, HourlyLimit: 10}, "hourly budget nearly exhausted")
	event = receive(t, all)
	assert.Equal(t, models.EventTypeBudgetAlert, event.Type)
	assert.Equal(t, models.SeverityCritical, event.Severity)

	decision := &models.ScalingDecision{Action: models.ActionScaleUp, Count: 2}
	pub.ScaledUp([]string{"i-2", "i-3"}, decision)
	event = receive(t, all)
	assert.Equal(t, models.EventTypeScaledUp, event.Type)
}

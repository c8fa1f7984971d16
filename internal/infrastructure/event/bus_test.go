package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/salesops/internal/domain/shared"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Quote", uuid.New()),
		Data:            "test data",
	}
}

type testHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("QuoteCreated")
	bus.Subscribe(handler)

	created := newTestEvent("QuoteCreated")
	deleted := newTestEvent("QuoteDeleted")
	require.NoError(t, bus.Publish(context.Background(), created, deleted))

	handled := handler.getHandled()
	require.Len(t, handled, 1)
	assert.Equal(t, created, handled[0])
}

func TestInMemoryEventBus_WildcardAndExplicitTypes(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	all := newTestHandler()
	explicit := newTestHandler("ignored")
	bus.Subscribe(all)
	bus.Subscribe(explicit, "InvoiceCreated")

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("InvoiceCreated"), newTestEvent("QuoteCreated")))

	assert.Len(t, all.getHandled(), 2)
	assert.Len(t, explicit.getHandled(), 1)
}

func TestInMemoryEventBus_HandlerFailuresAreIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := newTestHandler("ReservationReleased")
	failing.err = errors.New("boom")
	panicking := newTestHandler("ReservationReleased")
	panicking.panicWith = "nil map"
	healthy := newTestHandler("ReservationReleased")
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent("ReservationReleased"))

	require.NoError(t, err)
	assert.Len(t, healthy.getHandled(), 1)
	assert.Equal(t, 2, logs.FilterMessage("handler failed to process event").Len())
	delivered, failed := bus.Stats()
	assert.Equal(t, int64(1), delivered)
	assert.Equal(t, int64(2), failed)
}

func TestInMemoryEventBus_HandlerTimeout(t *testing.T) {
	bus := NewInMemoryEventBus(nil, WithHandlerTimeout(10*time.Millisecond))
	handler := &deadlineHandler{}
	bus.Subscribe(handler, "QuoteCreated")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("QuoteCreated")))
	assert.True(t, handler.sawDeadline)
}

func TestInMemoryEventBus_StopDropsEvents(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(nil)
	handler := newTestHandler("QuoteCreated")
	bus.Subscribe(handler)

	require.NoError(t, bus.Stop(ctx))
	require.NoError(t, bus.Publish(ctx, newTestEvent("QuoteCreated")))
	assert.Empty(t, handler.getHandled())

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Publish(ctx, newTestEvent("QuoteCreated")))
	assert.Len(t, handler.getHandled(), 1)
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	handler := newTestHandler("QuoteCreated")
	bus.Subscribe(handler)
	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("QuoteCreated")))
	assert.Empty(t, handler.getHandled())
}

type deadlineHandler struct {
	sawDeadline bool
}

func (h *deadlineHandler) Handle(ctx context.Context, _ shared.DomainEvent) error {
	_, h.sawDeadline = ctx.Deadline()
	return nil
}

func (h *deadlineHandler) EventTypes() []string { return nil }

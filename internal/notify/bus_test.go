package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishInSubscriptionOrder(t *testing.T) {
	bus := NewBus[string]()

	var got []string
	bus.Subscribe(func(v string) { got = append(got, "a:"+v) })
	bus.Subscribe(func(v string) { got = append(got, "b:"+v) })

	bus.Publish("x")
	bus.Publish("y")

	assert.Equal(t, []string{"a:x", "b:x", "a:y", "b:y"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus[int]()

	var calls int
	unsubscribe := bus.Subscribe(func(int) { calls++ })
	assert.Equal(t, 1, bus.Len())

	bus.Publish(1)
	unsubscribe()
	unsubscribe()
	bus.Publish(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_HandlerMayUnsubscribeItself(t *testing.T) {
	bus := NewBus[int]()

	var calls int
	var unsubscribe func()
	unsubscribe = bus.Subscribe(func(int) {
		calls++
		unsubscribe()
	})

	bus.Publish(1)
	bus.Publish(2)

	assert.Equal(t, 1, calls)
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewBus[struct{}]()
	assert.NotPanics(t, func() { bus.Publish(struct{}{}) })
}

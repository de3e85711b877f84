package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus(4)
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(Event{Kind: KindStarted, TotalChunks: 3})

	select {
	case e := <-ch:
		assert.Equal(t, KindStarted, e.Kind)
		assert.Equal(t, 3, e.TotalChunks)
		assert.NotZero(t, e.Sequence)
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDropsOldestWhenSubscriberFull(t *testing.T) {
	bus := NewBus(2)
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(Event{Kind: KindStarted})
	bus.Publish(Event{Kind: KindChunkStarted})
	bus.Publish(Event{Kind: KindChunkCompleted})

	first := <-ch
	second := <-ch
	assert.Equal(t, KindChunkStarted, first.Kind)
	assert.Equal(t, KindChunkCompleted, second.Kind)
}

func TestSequenceIsMonotonicAcrossPublishes(t *testing.T) {
	bus := NewBus(8)
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(Event{Kind: KindStarted})
	bus.Publish(Event{Kind: KindCompleted})

	e1 := <-ch
	e2 := <-ch
	assert.Less(t, e1.Sequence, e2.Sequence)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(4)
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestSchemaDescribesEventEnvelope(t *testing.T) {
	schema := Schema()
	require.NotNil(t, schema)
	_, ok := schema.Properties.Get("kind")
	assert.True(t, ok)
}

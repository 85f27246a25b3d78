package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObserver struct {
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ time.Duration) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	for i := range 5 {
		_, err := b.Subscribe("pose.updated", func(Event) error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, b.Publish(NewEvent("pose.updated", "test", nil, nil)))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestWildcardReceivesEveryType(t *testing.T) {
	b := New()
	var seen []string
	_, err := b.Subscribe(Wildcard, func(e Event) error {
		seen = append(seen, e.Type())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("map.loaded", "test", nil, nil)))
	require.NoError(t, b.Publish(NewEvent("step.completed", "test", nil, nil)))
	assert.Equal(t, []string{"map.loaded", "step.completed"}, seen)
}

func TestPublishJoinsHandlerErrors(t *testing.T) {
	b := New()
	errA, errB := errors.New("a"), errors.New("b")
	called := 0
	_, _ = b.Subscribe("x", func(Event) error { called++; return errA })
	_, _ = b.Subscribe("x", func(Event) error { called++; return nil })
	_, _ = b.Subscribe("x", func(Event) error { called++; return errB })

	err := b.Publish(NewEvent("x", "src", 1, nil))
	assert.Equal(t, 3, called)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, uint64(1), b.GetMetrics().Errors)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	n := 0
	sub, err := b.Subscribe("x", func(Event) error { n++; return nil })
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("x", "", nil, nil)))
	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, sub.Cancel())
	require.NoError(t, b.Publish(NewEvent("x", "", nil, nil)))

	assert.Equal(t, 1, n)
	assert.False(t, sub.IsActive())
	assert.Equal(t, uint64(0), b.GetMetrics().SubscribersActive)
	assert.NoError(t, b.Unsubscribe(nil))
}

func TestPublishAsyncReturnsErrorChannel(t *testing.T) {
	b := New()
	handlerErr := errors.New("fail")
	_, err := b.Subscribe("x", func(Event) error { return handlerErr })
	require.NoError(t, err)

	select {
	case e := <-b.PublishAsync(NewEvent("x", "src", nil, nil)):
		assert.ErrorIs(t, e, handlerErr)
	case <-time.After(time.Second):
		t.Fatal("async publish did not complete")
	}
}

func TestObserverSeesDeliveries(t *testing.T) {
	b := New()
	obs := &testObserver{}
	b.AddObserver(obs)
	_, _ = b.Subscribe("x", func(Event) error { return nil })
	_, _ = b.Subscribe(Wildcard, func(Event) error { return nil })

	require.NoError(t, b.Publish(NewEvent("x", "", nil, nil)))
	assert.Equal(t, 2, obs.deliveredCount)
	assert.NoError(t, obs.lastErr)

	b.RemoveObserver(obs)
	require.NoError(t, b.Publish(NewEvent("x", "", nil, nil)))
	assert.Equal(t, 2, obs.deliveredCount)
	assert.Equal(t, uint64(2), b.GetMetrics().Published)
}

func TestSubscribeRejectsNilHandler(t *testing.T) {
	_, err := New().Subscribe("x", nil)
	assert.Error(t, err)
}

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

func receive(t *testing.T, sub *Subscription) []byte {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func requireClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	for {
		select {
		case _, ok := <-sub.C():
			if !ok {
				return
			}
		case <-time.After(time.Second):
			t.Fatal("subscription was not closed")
		}
	}
}

func TestHub_FanOut(t *testing.T) {
	hub := NewHub(models.NewGameID(), 10, nil)
	a := hub.Subscribe()
	b := hub.Subscribe()
	assert.Equal(t, 2, hub.Len())

	hub.Publish([]byte("one"))
	hub.Publish([]byte("two"))

	for _, sub := range []*Subscription{a, b} {
		assert.Equal(t, "one", string(receive(t, sub)))
		assert.Equal(t, "two", string(receive(t, sub)))
	}
}

func TestHub_NoReplayForLateSubscribers(t *testing.T) {
	hub := NewHub(models.NewGameID(), 10, nil)
	early := hub.Subscribe()
	hub.Publish([]byte("before"))

	late := hub.Subscribe()
	hub.Publish([]byte("after"))

	assert.Equal(t, "before", string(receive(t, early)))
	assert.Equal(t, "after", string(receive(t, early)))
	assert.Equal(t, "after", string(receive(t, late)))
	assert.Empty(t, late.C())
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	drops := 0
	hub := NewHub(models.NewGameID(), 2, func() { drops++ })
	slow := hub.Subscribe()
	fast := hub.Subscribe()

	hub.Publish([]byte("1"))
	hub.Publish([]byte("2"))
	assert.Equal(t, "1", string(receive(t, fast)))
	assert.Equal(t, "2", string(receive(t, fast)))

	hub.Publish([]byte("3"))

	assert.Equal(t, 1, drops)
	assert.Equal(t, 1, hub.Len())
	assert.Equal(t, "3", string(receive(t, fast)))
	requireClosed(t, slow)
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(models.NewGameID(), 10, nil)
	sub := hub.Subscribe()

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, hub.Len())
	requireClosed(t, sub)
	hub.Publish([]byte("ignored"))
}

func TestHub_CloseDropsEveryone(t *testing.T) {
	hub := NewHub(models.NewGameID(), 10, nil)
	a := hub.Subscribe()
	b := hub.Subscribe()

	hub.Close()
	hub.Publish([]byte("ignored"))

	requireClosed(t, a)
	requireClosed(t, b)
	assert.Equal(t, 0, hub.Len())

	late := hub.Subscribe()
	requireClosed(t, late)
	late.Close()
}

func TestHub_DefaultBufferSize(t *testing.T) {
	hub := NewHub(models.NewGameID(), 0, nil)
	sub := hub.Subscribe()
	assert.Equal(t, DefaultBufferSize, cap(sub.ch))
}

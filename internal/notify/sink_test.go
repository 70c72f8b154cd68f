package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/jobconsole/internal/domain"
)

func TestSinkPost(t *testing.T) {
	t.Run("Should use the action and copy timeouts", func(t *testing.T) {
		s := NewSink()

		assert.Equal(t, 10*time.Second, s.Success("ok").TTL)
		assert.Equal(t, 10*time.Second, s.Error("bad").TTL)
		assert.Equal(t, 3*time.Second, s.Copied("copied").TTL)
	})

	t.Run("Should display the latest message only", func(t *testing.T) {
		s := NewSink()

		s.Info("first")
		second := s.Error("second")

		cur, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, second.ID, cur.ID)
		assert.Equal(t, domain.SeverityError, cur.Severity)
		assert.Equal(t, "second", cur.Message)
	})

	t.Run("Should auto-dismiss after the timeout", func(t *testing.T) {
		s := NewSink(WithTTL(20*time.Millisecond, 0))

		s.Success("done")

		assert.Eventually(t, func() bool {
			_, ok := s.Current()
			return !ok
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("Should not let a pre-empted timer dismiss the new message", func(t *testing.T) {
		s := NewSink(WithTTL(time.Hour, 20*time.Millisecond))

		s.Copied("copied")
		next := s.Success("started")
		time.Sleep(60 * time.Millisecond)

		cur, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, next.ID, cur.ID)
	})
}

func TestSinkDismiss(t *testing.T) {
	t.Run("Should ignore a stale id", func(t *testing.T) {
		s := NewSink()
		first := s.Info("first")
		s.Info("second")

		assert.False(t, s.Dismiss(first.ID))
		_, ok := s.Current()
		assert.True(t, ok)
	})

	t.Run("Should clear the current message", func(t *testing.T) {
		s := NewSink()
		n := s.Info("hello")

		assert.True(t, s.Dismiss(n.ID))
		_, ok := s.Current()
		assert.False(t, ok)
	})
}

func TestSinkSubscribe(t *testing.T) {
	t.Run("Should notify listeners of posts and dismissals", func(t *testing.T) {
		s := NewSink()

		var (
			mu  sync.Mutex
			got []string
		)
		unsubscribe := s.Subscribe(func(n *domain.Notification) {
			mu.Lock()
			defer mu.Unlock()
			if n == nil {
				got = append(got, "<dismissed>")
				return
			}
			got = append(got, n.Message)
		})

		n := s.Info("hello")
		s.Dismiss(n.ID)
		unsubscribe()
		s.Info("unseen")

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"hello", "<dismissed>"}, got)
	})
}

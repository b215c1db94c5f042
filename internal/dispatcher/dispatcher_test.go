package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, kv))
}

func (l *captureLogger) Debug(msg string, kv ...any) { l.add("DEBUG", msg, kv) }
func (l *captureLogger) Info(msg string, kv ...any) { l.add("INFO", msg, kv) }
func (l *captureLogger) Error(msg string, kv ...any) { l.add("ERROR", msg, kv) }

func (l *captureLogger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func (l *captureLogger) has(prefix string) bool {
	for _, line := range l.snapshot() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func newDispatcher(t *testing.T) (*Dispatcher, *captureLogger) {
	t.Helper()
	log := &captureLogger{}
	d, err := New(log)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, log
}

const snapshotCmd = ":MARKERS:SNAPSHOT:"

func TestDispatch_Inline(t *testing.T) {
	d, _ := newDispatcher(t)

	var got Event
	d.Register(snapshotCmd, func(e Event) (any, error) {
		got = e
		return len(e.Payload.([]string)), nil
	})

	result, err := d.Dispatch(Event{Command: snapshotCmd, Payload: []string{"QR-1", "QR-2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result)
	assert.Equal(t, snapshotCmd, got.Command)
	assert.False(t, got.Timestamp.IsZero())
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d, _ := newDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":NOPE:"})
	require.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, err.Error(), ":NOPE:")
}

func TestDispatch_KeepsCallerTimestamp(t *testing.T) {
	d, _ := newDispatcher(t)

	var got time.Time
	d.Register(snapshotCmd, func(e Event) (any, error) {
		got = e.Timestamp
		return nil, nil
	})

	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	_, err := d.Dispatch(Event{Command: snapshotCmd, Timestamp: at})
	require.NoError(t, err)
	assert.True(t, got.Equal(at))
}

func TestBuffered_RunsOffCaller(t *testing.T) {
	d, _ := newDispatcher(t)

	var wg sync.WaitGroup
	wg.Add(3)
	d.Register(snapshotCmd, func(Event) (any, error) {
		wg.Done()
		return nil, nil
	}, Buffered(8))

	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: snapshotCmd})
		require.NoError(t, err)
		assert.Equal(t, Queued, result)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return d.Stats()[snapshotCmd].Processed == 3
	}, time.Second, time.Millisecond)
}

func TestBuffered_FullQueue(t *testing.T) {
	d, _ := newDispatcher(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	d.Register(snapshotCmd, func(Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil, nil
	}, Buffered(2))
	defer close(release)

	_, err := d.Dispatch(Event{Command: snapshotCmd})
	require.NoError(t, err)
	<-started

	for i := 0; i < 2; i++ {
		_, err := d.Dispatch(Event{Command: snapshotCmd})
		require.NoError(t, err)
	}

	_, err = d.Dispatch(Event{Command: snapshotCmd})
	require.ErrorIs(t, err, ErrQueueFull)
	assert.Contains(t, err.Error(), "queue full")

	stats := d.Stats()[snapshotCmd]
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, 2, stats.Queued)
}

func TestBuffered_BlockingWaitsForRoom(t *testing.T) {
	d, _ := newDispatcher(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	d.Register(snapshotCmd, func(Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil, nil
	}, Buffered(1), Blocking())

	_, err := d.Dispatch(Event{Command: snapshotCmd})
	require.NoError(t, err)
	<-started
	_, err = d.Dispatch(Event{Command: snapshotCmd})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: snapshotCmd})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("dispatch returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not resume after the queue drained")
	}
}

func TestLogged(t *testing.T) {
	tests := []struct {
		name    string
		handler HandlerFunc
		want    []string
	}{
		{
			name:    "success",
			handler: func(Event) (any, error) { return "ok", nil },
			want:    []string{"DEBUG handling event", "DEBUG event complete"},
		},
		{
			name:    "failure",
			handler: func(Event) (any, error) { return nil, errors.New("decode failed") },
			want:    []string{"DEBUG handling event", "ERROR event failed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, log := newDispatcher(t)
			d.Register(":TRACKER:STATUS:", tt.handler, Logged())

			d.Dispatch(Event{Command: ":TRACKER:STATUS:", Payload: 42})

			for _, prefix := range tt.want {
				assert.True(t, log.has(prefix), "missing %q in %v", prefix, log.snapshot())
			}
		})
	}
}

func TestLogged_Buffered(t *testing.T) {
	d, log := newDispatcher(t)

	d.Register(snapshotCmd, func(Event) (any, error) { return "done", nil }, Buffered(4), Logged())

	result, err := d.Dispatch(Event{Command: snapshotCmd})
	require.NoError(t, err)
	assert.Equal(t, Queued, result)

	d.Close()
	assert.True(t, log.has("DEBUG event complete"))
}

func TestStats_ListsRegisteredCommands(t *testing.T) {
	d, _ := newDispatcher(t)
	d.Register(":EXISTS:", func(Event) (any, error) { return nil, nil })

	stats := d.Stats()
	assert.Contains(t, stats, ":EXISTS:")
	assert.NotContains(t, stats, ":MISSING:")
	assert.Equal(t, Stats{}, stats[":EXISTS:"])
}

func TestStats_CountsFailures(t *testing.T) {
	d, _ := newDispatcher(t)

	d.Register(snapshotCmd, func(e Event) (any, error) {
		if e.Payload == nil {
			return nil, errors.New("empty batch")
		}
		return nil, nil
	})

	d.Dispatch(Event{Command: snapshotCmd, Payload: 1})
	d.Dispatch(Event{Command: snapshotCmd})
	d.Dispatch(Event{Command: snapshotCmd, Payload: 2})

	stats := d.Stats()[snapshotCmd]
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Zero(t, stats.Dropped)
}

func TestClose_DrainsQueues(t *testing.T) {
	d, _ := newDispatcher(t)

	var handled atomic.Int32
	d.Register(snapshotCmd, func(Event) (any, error) {
		time.Sleep(time.Millisecond)
		handled.Add(1)
		return nil, nil
	}, Buffered(16))

	for i := 0; i < 10; i++ {
		_, err := d.Dispatch(Event{Command: snapshotCmd})
		require.NoError(t, err)
	}

	d.Close()
	d.Close()

	assert.Equal(t, int32(10), handled.Load())
	_, err := d.Dispatch(Event{Command: snapshotCmd})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_LogsBufferedFailures(t *testing.T) {
	d, log := newDispatcher(t)

	d.Register(":TRACKER:ERROR:", func(Event) (any, error) {
		return nil, errors.New("storage unavailable")
	}, Buffered(1))

	_, err := d.Dispatch(Event{Command: ":TRACKER:ERROR:"})
	require.NoError(t, err)
	d.Close()

	assert.True(t, log.has("ERROR buffered handler failed"), "%v", log.snapshot())
	assert.Equal(t, int64(1), d.Stats()[":TRACKER:ERROR:"].Failed)
}

func TestClose_ConcurrentWithDispatch(t *testing.T) {
	d, _ := newDispatcher(t)
	d.Register(snapshotCmd, func(Event) (any, error) { return nil, nil }, Buffered(4))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, err := d.Dispatch(Event{Command: snapshotCmd})
				if errors.Is(err, ErrClosed) {
					return
				}
			}
		}()
	}

	time.Sleep(time.Millisecond)
	d.Close()
	wg.Wait()
}

func TestRegister_ReplacesBufferedRoute(t *testing.T) {
	d, _ := newDispatcher(t)

	var first, second atomic.Int32
	d.Register(snapshotCmd, func(Event) (any, error) { first.Add(1); return nil, nil }, Buffered(4))
	d.Register(snapshotCmd, func(Event) (any, error) { second.Add(1); return nil, nil }, Buffered(4))

	_, err := d.Dispatch(Event{Command: snapshotCmd})
	require.NoError(t, err)
	d.Close()

	assert.Zero(t, first.Load())
	assert.Equal(t, int32(1), second.Load())
}

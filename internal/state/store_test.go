package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

func telemetry(device string, values map[string]string) *protocol.Telemetry {
	return &protocol.Telemetry{DeviceID: device, Timestamp: time.Now(), Values: values}
}

func TestApplyMergesValues(t *testing.T) {
	s := NewStore()
	s.Apply(telemetry("a", map[string]string{"croce": "1", "run": "1"}))
	s.Apply(telemetry("a", map[string]string{"run": "0", "TOH": "30"}))

	snap, ok := s.Snapshot("a")
	require.True(t, ok)
	require.Equal(t, map[string]string{"croce": "1", "run": "0", "TOH": "30"}, snap.Values)

	_, ok = s.Snapshot("b")
	require.False(t, ok)
}

func TestApplyIgnoresEmpty(t *testing.T) {
	s := NewStore()
	s.Apply(nil)
	s.Apply(telemetry("a", nil))
	require.Empty(t, s.Devices())
}

func TestNumericFallback(t *testing.T) {
	s := NewStore()
	s.Apply(telemetry("a", map[string]string{"TOH": "30", "lux": "0.50", "TOV": "n/a"}))

	require.Equal(t, 30, s.IntOr("a", "TOH", 10))
	require.Equal(t, 10, s.IntOr("a", "TOV", 10))
	require.Equal(t, 10, s.IntOr("a", "missing", 10))
	require.Equal(t, 10, s.IntOr("other", "TOH", 10))
	require.InDelta(t, 0.5, s.FloatOr("a", "lux", 0), 1e-9)
	require.InDelta(t, 1.5, s.FloatOr("a", "TOV", 1.5), 1e-9)
}

func TestSnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.Apply(telemetry("a", map[string]string{"x": "1"}))

	snap, _ := s.Snapshot("a")
	snap.Values["x"] = "changed"

	v, _ := s.Get("a", "x")
	require.Equal(t, "1", v)
}

func TestDevices(t *testing.T) {
	s := NewStore()
	s.Apply(telemetry("b", map[string]string{"x": "1"}))
	s.Apply(telemetry("a", map[string]string{"x": "2"}))
	require.Equal(t, []string{"a", "b"}, s.Devices())
	require.Len(t, s.All(), 2)
}

func TestConcurrentApply(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				s.Apply(telemetry("a", map[string]string{"x": "1"}))
				s.Get("a", "x")
				s.All()
			}
		}()
	}
	wg.Wait()
	v, ok := s.Get("a", "x")
	require.True(t, ok)
	require.Equal(t, "1", v)
}

package state

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

// DeviceState 单个设备最近一次收到的字段值
type DeviceState struct {
	Values    map[string]string `json:"values"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store 按设备保存最新字段值，并发安全
type Store struct {
	mu      sync.RWMutex
	devices map[string]*DeviceState
}

func NewStore() *Store {
	return &Store{devices: make(map[string]*DeviceState)}
}

// Apply 把一行解析结果合并到设备状态，已有字段被覆盖，未出现的字段保留
func (s *Store) Apply(t *protocol.Telemetry) {
	if t == nil || len(t.Values) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[t.DeviceID]
	if !ok {
		dev = &DeviceState{Values: make(map[string]string, len(t.Values))}
		s.devices[t.DeviceID] = dev
	}
	for name, value := range t.Values {
		dev.Values[name] = value
	}
	dev.UpdatedAt = t.Timestamp
}

func (s *Store) Get(deviceID, name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, ok := s.devices[deviceID]
	if !ok {
		return "", false
	}
	v, ok := dev.Values[name]
	return v, ok
}

// IntOr 取整数值，不存在或无法解析时返回 fallback
func (s *Store) IntOr(deviceID, name string, fallback int) int {
	v, ok := s.Get(deviceID, name)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// FloatOr 取浮点值，不存在或无法解析时返回 fallback
func (s *Store) FloatOr(deviceID, name string, fallback float64) float64 {
	v, ok := s.Get(deviceID, name)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// Snapshot 返回设备状态的副本
func (s *Store) Snapshot(deviceID string) (DeviceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, ok := s.devices[deviceID]
	if !ok {
		return DeviceState{}, false
	}
	values := make(map[string]string, len(dev.Values))
	for k, v := range dev.Values {
		values[k] = v
	}
	return DeviceState{Values: values, UpdatedAt: dev.UpdatedAt}, true
}

// All 返回所有设备状态的副本
func (s *Store) All() map[string]DeviceState {
	out := make(map[string]DeviceState)
	for _, id := range s.Devices() {
		if st, ok := s.Snapshot(id); ok {
			out[id] = st
		}
	}
	return out
}

// Devices 返回已知设备ID（排序）
func (s *Store) Devices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

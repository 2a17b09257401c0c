package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name     string
		devices  int
		interval time.Duration
		idle     int
		wantErr  bool
	}{
		{"defaults", 10, 100 * time.Millisecond, 5, false},
		{"zero interval", 10, 0, 5, true},
		{"negative interval", 10, -time.Second, 5, true},
		{"no devices", 0, time.Second, 5, true},
		{"idle over 100", 1, time.Second, 101, true},
		{"all idle", 1, time.Second, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFlags(tt.devices, tt.interval, tt.idle)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

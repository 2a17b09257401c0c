package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sandrogeco/centrafari2.1/internal/testutil"
	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

func TestParseConfiguredFields(t *testing.T) {
	p := NewParser(Options{Fields: []string{"x", "lux", "up"}})
	result := p.Parse("dev-1", testutil.TelemetryLine)

	require.True(t, result.Success)
	require.NoError(t, result.Error)
	require.Equal(t, "dev-1", result.Data.DeviceID)
	require.Equal(t, map[string]string{"x": "123", "lux": "0.50"}, result.Data.Values)
	require.Equal(t, []string{"up"}, result.Data.Missing)
	require.Equal(t, testutil.TelemetryLine, result.Data.Raw)
	require.False(t, result.Data.Timestamp.IsZero())
}

func TestParseAllFields(t *testing.T) {
	p := NewParser(Options{})
	result := p.Parse("dev-1", testutil.CommandLine)

	require.True(t, result.Success)
	require.Equal(t, map[string]string{
		"croce":        "1",
		"run":          "1",
		"tipo_faro":    "anabbagliante",
		"TOH":          "30",
		"TOV":          "20",
		"inclinazione": "5",
	}, result.Data.Values)
	require.Empty(t, result.Data.Missing)
}

func TestParseAllFieldsSkipsUndecodableNames(t *testing.T) {
	// "x\t 1" 拆分后名为 x，但 x 后面不是空格，Decode 找不到
	result := NewParser(Options{}).Parse("dev-1", "x\t 1; y 2;")

	require.True(t, result.Success)
	require.Equal(t, map[string]string{"y": "2"}, result.Data.Values)
	require.Empty(t, result.Data.Missing)
}

func TestParseRepeatedFieldKeepsFirst(t *testing.T) {
	p := NewParser(Options{})
	result := p.Parse("dev-1", "run 1; run 0;")
	require.True(t, result.Success)
	require.Equal(t, "1", result.Data.Values["run"])
}

func TestParseStrictTruncation(t *testing.T) {
	p := NewParser(Options{Fields: []string{"x", "tipo_faro"}, MaxValueLen: 4})
	result := p.Parse("dev-1", testutil.CommandLine+" x 1;")

	require.False(t, result.Success)
	require.ErrorIs(t, result.Error, ErrTruncated)
	require.Equal(t, []string{"tipo_faro"}, result.Data.Truncated)
}

func TestParseSilentTruncation(t *testing.T) {
	p := NewParser(Options{Fields: []string{"tipo_faro"}, MaxValueLen: 4, Truncation: TruncationSilent})
	result := p.Parse("dev-1", testutil.CommandLine)

	require.True(t, result.Success)
	require.Equal(t, "anab", result.Data.Values["tipo_faro"])
	require.Equal(t, []string{"tipo_faro"}, result.Data.Truncated)
}

func TestParseNoFields(t *testing.T) {
	p := NewParser(Options{Fields: protocol.TelemetryFields})
	result := p.Parse("dev-1", "croce 1;")
	require.False(t, result.Success)
	require.ErrorIs(t, result.Error, ErrNoFields)
	require.Len(t, result.Data.Missing, len(protocol.TelemetryFields))

	result = NewParser(Options{}).Parse("dev-1", "garbage")
	require.ErrorIs(t, result.Error, ErrNoFields)
}

func TestParseIdle(t *testing.T) {
	p := NewParser(Options{})
	result := p.Parse("dev-1", "idle ")
	require.False(t, result.Success)
	require.ErrorIs(t, result.Error, ErrIdle)
	require.Nil(t, result.Data)
}

func TestSplitFields(t *testing.T) {
	fields := SplitFields("  croce 1;run  0 ; tipo_faro anabbagliante;;novalue; ")
	require.Equal(t, []protocol.Field{
		{Name: "croce", Value: "1"},
		{Name: "run", Value: "0"},
		{Name: "tipo_faro", Value: "anabbagliante"},
	}, fields)

	require.Empty(t, SplitFields(""))
	require.Empty(t, SplitFields("idle"))
}

func TestNames(t *testing.T) {
	require.Equal(t, []string{"x", "y", "lux"}, Names("x 1; y 2; x 3; lux 4;"))
	require.Empty(t, Names(""))
}

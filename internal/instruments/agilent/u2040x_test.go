package agilent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/property"
	"github.com/vik-s/pymeasure/internal/transport"
)

func TestU2040X(t *testing.T) {
	fake := transport.NewFake(map[string]string{
		"READ?":      "-12.345",
		"FREQ?":      "+1.00000000E+009",
		"INIT:CONT?": "0",
	})
	pm, err := NewU2040X(instrument.New("pm", fake))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, pm.ContinuousMode.Set(ctx, "OFF"))
	require.NoError(t, pm.Init(ctx))

	reading, err := pm.Reading.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, -12.345, reading)

	freq, err := pm.Frequency.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1e9, freq)

	assert.Equal(t, []string{"INIT:CONT 0", "INIT:IMM", "READ?", "FREQ?"}, fake.Sent())
	assert.ErrorIs(t, pm.Reading.Set(ctx, 1), property.ErrNotWritable)
}

func TestU2040XContinuousModeRoundTrip(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{"0", "OFF"},
		{"1", "ON"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			fake := transport.NewFake(map[string]string{"INIT:CONT?": tt.reply})
			pm, err := NewU2040X(instrument.New("pm", fake))
			require.NoError(t, err)
			ctx := context.Background()

			got, err := pm.ContinuousMode.GetText(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.NoError(t, pm.ContinuousMode.SetText(ctx, got))
			assert.Equal(t, []string{"INIT:CONT?", "INIT:CONT " + tt.reply}, fake.Sent())
			assert.ErrorIs(t, pm.ContinuousMode.Set(ctx, tt.reply), property.ErrInvalidValue)
		})
	}
}

func TestU2040XFrequencyUnit(t *testing.T) {
	fake := transport.NewFake(nil)
	pm, err := NewU2040X(instrument.New("pm", fake))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, pm.Frequency.Set(ctx, 2.4))
	mhz, err := pm.WithUnits(property.Units{Frequency: "MHz"})
	require.NoError(t, err)
	require.NoError(t, mhz.Frequency.Set(ctx, 915))

	assert.Equal(t, []string{"FREQ 2.4GHz", "FREQ 915MHz"}, fake.Sent())
	assert.Equal(t, ModelU2040X, pm.Model())
}

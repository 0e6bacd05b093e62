package transport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackBuffersOutput(t *testing.T) {
	ctx := context.Background()
	var got []string
	l := NewLoopback(HandlerFunc(func(_ context.Context, line string) (string, bool) {
		got = append(got, line)
		if strings.HasSuffix(line, "?") {
			return "1", true
		}
		return "", false
	}))

	require.NoError(t, l.Write(ctx, "INIT"))
	resp, err := l.Query(ctx, "*OPC?")
	require.NoError(t, err)
	assert.Equal(t, "1", resp)

	_, err = l.Query(ctx, "INIT")
	assert.ErrorIs(t, err, ErrNoResponse)
	assert.Equal(t, []string{"INIT", "*OPC?", "INIT"}, got)

	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Write(ctx, "INIT"), ErrClosed)
}

func TestFakeScripts(t *testing.T) {
	ctx := context.Background()
	f := NewFake(map[string]string{"*IDN?": "ACME,X1,1,1.0"})
	f.Script("SYST:ERR?", `-113,"Undefined header"`, `0,"No error"`)

	resp, err := f.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "ACME,X1,1,1.0", resp)

	first, _ := f.Query(ctx, "SYST:ERR?")
	second, _ := f.Query(ctx, "SYST:ERR?")
	third, _ := f.Query(ctx, "SYST:ERR?")
	assert.Equal(t, `-113,"Undefined header"`, first)
	assert.Equal(t, `0,"No error"`, second)
	assert.Equal(t, second, third)

	_, err = f.Query(ctx, "FREQ?")
	assert.ErrorIs(t, err, ErrNoResponse)

	boom := errors.New("boom")
	f.SimulateError("OUTP ON", boom)
	assert.ErrorIs(t, f.Write(ctx, "OUTP ON"), boom)
	f.SimulateError("OUTP ON", nil)
	assert.NoError(t, f.Write(ctx, "OUTP ON"))

	assert.Len(t, f.Sent(), 7)
}

package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T, model string) *Device {
	t.Helper()
	p, err := LoadProfile(model)
	require.NoError(t, err)
	d := New(p)
	t.Cleanup(func() { d.Close() })
	return d
}

func ask(t *testing.T, d *Device, line string) string {
	t.Helper()
	resp, ok := d.Handle(context.Background(), line)
	require.True(t, ok, "no output for %q", line)
	return resp
}

func send(t *testing.T, d *Device, line string) {
	t.Helper()
	_, ok := d.Handle(context.Background(), line)
	require.False(t, ok, "unexpected output for %q", line)
}

func TestBuiltinProfilesLoad(t *testing.T) {
	assert.Equal(t, []string{"agilent-u2040x", "rs-fsq", "rs-smb100a"}, Models())
	for _, m := range Models() {
		p, err := LoadProfile(m)
		require.NoError(t, err, m)
		assert.Equal(t, m, p.Model)
		assert.NotEmpty(t, p.Headers)
	}

	_, err := LoadProfile("hp-8657")
	assert.Error(t, err)
}

func TestProfileValidate(t *testing.T) {
	lo, hi := 0.0, 10.0
	p := &Profile{Model: "x", Headers: []Header{
		{Name: "VOLT", Kind: KindFloat, Default: "20", Min: &lo, Max: &hi},
		{Name: "MODE", Kind: KindEnum},
		{Name: "volt", Kind: KindAction},
		{Name: "CURR", Kind: "complex"},
	}}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VOLT: default")
	assert.Contains(t, err.Error(), "MODE: enum without values")
	assert.Contains(t, err.Error(), "VOLT defined twice")
	assert.Contains(t, err.Error(), `unknown kind "complex"`)
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		":FREQ:CENT":     "FREQ:CENT",
		"calc:mark2:y":   "CALC:MARK:Y",
		"CALC:MARK1":     "CALC:MARK",
		"*IDN":           "*IDN",
		" SYST:ERR:NEXT": "SYST:ERR:NEXT",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalize(in), in)
	}
}

func TestCommonCommands(t *testing.T) {
	d := newDevice(t, "rs-smb100a")

	assert.Equal(t, "Rohde&Schwarz,SMB100A,1406.6000k03/180012,2.15.1.7", ask(t, d, "*IDN?"))
	assert.Equal(t, "B1,B103,K22", ask(t, d, "*OPT?"))
	assert.Equal(t, "1", ask(t, d, "*OPC?"))
	assert.Equal(t, `0,"No error"`, ask(t, d, "SYST:ERR?"))
}

func TestSetAndQueryWithSuffix(t *testing.T) {
	d := newDevice(t, "rs-fsq")

	send(t, d, ":FREQ:CENT 1.5GHz")
	assert.Equal(t, "1500000000", ask(t, d, ":FREQ:CENT?"))

	send(t, d, "BAND 300 kHz")
	assert.Equal(t, "300000", ask(t, d, "BAND:RES?"))

	send(t, d, "DISP:TRAC:Y:RLEV:OFFS -12.5dB")
	assert.Equal(t, "-12.5", ask(t, d, "DISP:TRAC:Y:RLEV:OFFS?"))

	send(t, d, "AVER ON")
	assert.Equal(t, "1", ask(t, d, "AVER?"))

	send(t, d, "freq:mode fixed")
	assert.Equal(t, "FIXED", ask(t, d, "FREQ:MODE?"))
	assert.Equal(t, `0,"No error"`, ask(t, d, "SYST:ERR?"))
}

func TestErrorQueue(t *testing.T) {
	d := newDevice(t, "rs-fsq")

	send(t, d, "FREQ:BOGUS 1")
	send(t, d, "SWE:POIN 700")
	send(t, d, "FREQ:CENT 99GHz")
	send(t, d, "FREQ:CENT 1THz")
	send(t, d, "FREQ:CENT")
	send(t, d, "CALC:MARK:Y 3")

	assert.Equal(t, 6, d.Pending())
	assert.Equal(t, `-113,"Undefined header"`, ask(t, d, "SYST:ERR?"))
	assert.Equal(t, `-224,"Illegal parameter value"`, ask(t, d, "SYST:ERR?"))
	assert.Equal(t, `-222,"Data out of range"`, ask(t, d, "SYST:ERR?"))
	assert.Equal(t, `-131,"Invalid suffix"`, ask(t, d, "SYST:ERR?"))
	assert.Equal(t, `-109,"Missing parameter"`, ask(t, d, "SYST:ERR:NEXT?"))
	assert.Equal(t, `-113,"Undefined header"`, ask(t, d, "SYST:ERR?"))
	assert.Equal(t, `0,"No error"`, ask(t, d, "SYST:ERR?"))

	// Rejected values leave the stored value alone.
	assert.Equal(t, "625", ask(t, d, "SWE:POIN?"))
}

func TestErrorQueueOverflow(t *testing.T) {
	d := newDevice(t, "agilent-u2040x")
	for i := 0; i < maxQueue+3; i++ {
		send(t, d, "NOPE")
	}
	assert.Equal(t, maxQueue, d.Pending())
	for i := 0; i < maxQueue-1; i++ {
		assert.Equal(t, `-113,"Undefined header"`, ask(t, d, "SYST:ERR?"))
	}
	assert.Equal(t, `-350,"Queue overflow"`, ask(t, d, "SYST:ERR?"))

	d.PushError(-200, "Execution error")
	send(t, d, "*CLS")
	assert.Zero(t, d.Pending())
}

func TestResetRestoresDefaults(t *testing.T) {
	d := newDevice(t, "rs-smb100a")

	send(t, d, ":POW -10")
	send(t, d, ":OUTP ON")
	v, _ := d.Value("POW")
	assert.Equal(t, "-10", v)

	send(t, d, "*RST")
	assert.Equal(t, "-30", ask(t, d, ":POW?"))
	assert.Equal(t, "0", ask(t, d, ":OUTP?"))
}

func TestCompoundMessage(t *testing.T) {
	d := newDevice(t, "rs-fsq")

	assert.Equal(t, "1", ask(t, d, "INIT;*OPC?"))
	assert.Equal(t, "625;1", ask(t, d, "SWE:POIN?;INIT:CONT?"))
}

func TestQueryOnActionAndArguments(t *testing.T) {
	d := newDevice(t, "rs-fsq")

	_, ok := d.Handle(context.Background(), "CALC:MARK:AOFF?")
	assert.False(t, ok)
	send(t, d, "CALC:MARK1:PEAK 5")
	assert.Equal(t, `-113,"Undefined header"`, ask(t, d, "SYST:ERR?"))
	assert.Equal(t, `-108,"Parameter not allowed"`, ask(t, d, "SYST:ERR?"))
}

func TestStagedReading(t *testing.T) {
	d := newDevice(t, "agilent-u2040x")
	require.True(t, d.SetValue("FETC", "-3.5"))
	assert.Equal(t, "-3.5", ask(t, d, "READ?"))
	assert.False(t, d.SetValue("NOPE", "1"))
}

func TestHandleAfterClose(t *testing.T) {
	p, err := LoadProfile("rs-fsq")
	require.NoError(t, err)
	d := New(p, WithLatency(time.Millisecond))
	require.NoError(t, d.Close())

	_, ok := d.Handle(context.Background(), "*IDN?")
	assert.False(t, ok)
}

func TestHandleCancelled(t *testing.T) {
	p, err := LoadProfile("rs-fsq")
	require.NoError(t, err)
	d := New(p, WithLatency(200*time.Millisecond))
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := d.Handle(ctx, "*IDN?")
	assert.False(t, ok)
}

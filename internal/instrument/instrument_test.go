package instrument

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vik-s/pymeasure/internal/property"
	"github.com/vik-s/pymeasure/internal/transport"
)

type recorder struct {
	txs []Transaction
}

func (r *recorder) Record(tx Transaction)  { r.txs = append(r.txs, tx) }
func (r *recorder) Observe(tx Transaction) { r.txs = append(r.txs, tx) }

func TestAskTrimsAndRecords(t *testing.T) {
	fake := transport.NewFake(map[string]string{"FREQ?": "1.5E+09\r\n"})
	rec := &recorder{}
	inst := New("sa", fake, WithTranscript(rec))

	resp, err := inst.Ask(context.Background(), "FREQ?")
	require.NoError(t, err)
	assert.Equal(t, "1.5E+09", resp)

	require.Len(t, rec.txs, 1)
	assert.Equal(t, "sa", rec.txs[0].Instrument)
	assert.True(t, rec.txs[0].Query)
	assert.Equal(t, "1.5E+09", rec.txs[0].Response)
}

func TestTransportErrorsAreCommunicationErrors(t *testing.T) {
	fake := transport.NewFake(nil)
	boom := errors.New("serial port unplugged")
	fake.SimulateError("", boom)
	obs := &recorder{}
	inst := New("sg", fake, WithObserver(obs))

	_, err := inst.Ask(context.Background(), ":POW?")
	require.ErrorIs(t, err, property.ErrCommunication)
	assert.ErrorIs(t, err, boom)

	err = inst.Write(context.Background(), ":POW -10")
	var ce *property.CommunicationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ":POW -10", ce.Command)

	require.Len(t, obs.txs, 2)
	assert.Error(t, obs.txs[1].Err)
}

func TestNextError(t *testing.T) {
	fake := transport.NewFake(nil)
	fake.Script(CmdNextError, `-113,"Undefined header"`, `+0,"No error"`)
	inst := New("sa", fake)
	ctx := context.Background()

	code, msg, err := inst.NextError(ctx)
	require.NoError(t, err)
	assert.Equal(t, -113, code)
	assert.Equal(t, "Undefined header", msg)

	code, msg, err = inst.NextError(ctx)
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.Empty(t, msg)
}

func TestParseError(t *testing.T) {
	tests := []struct {
		resp    string
		code    int
		message string
		wantErr bool
	}{
		{`0,"No error"`, 0, "", false},
		{`+0,"No error"`, 0, "", false},
		{"0", 0, "", false},
		{`-222,"Data out of range"`, -222, "Data out of range", false},
		{`-222,"Data out of range;FREQ 99GHz"`, -222, "Data out of range;FREQ 99GHz", false},
		{`113,"Vendor, with comma"`, 113, "Vendor, with comma", false},
		{"", 0, "", true},
		{"oops", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.resp, func(t *testing.T) {
			code, msg, err := ParseError(tt.resp)
			if tt.wantErr {
				assert.ErrorIs(t, err, property.ErrProtocol)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.message, msg)
		})
	}
}

func TestDrainErrors(t *testing.T) {
	fake := transport.NewFake(nil)
	fake.Script(CmdNextError, `-113,"Undefined header"`, `-222,"Data out of range"`, `0,"No error"`)
	inst := New("sa", fake)

	errs, err := inst.DrainErrors(context.Background())
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, -113, errs[0].Code)
	assert.Equal(t, -222, errs[1].Code)
}

func TestDrainErrorsStuckQueue(t *testing.T) {
	fake := transport.NewFake(map[string]string{CmdNextError: `-350,"Queue overflow"`})
	inst := New("sa", fake)

	errs, err := inst.DrainErrors(context.Background())
	assert.Error(t, err)
	assert.Len(t, errs, maxDrain)
}

func TestCommonCommands(t *testing.T) {
	fake := transport.NewFake(map[string]string{
		CmdIdentify:  "Rohde&Schwarz,SMB100A,1406.6000k03/180012,2.15.1.7",
		CmdOptions:   `"B1","B103","K22"`,
		CmdOperation: "1",
	})
	inst := New("sg", fake)
	ctx := context.Background()

	id, err := inst.ID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Rohde&Schwarz", id.Manufacturer)
	assert.Equal(t, "SMB100A", id.Model)
	assert.Equal(t, "1406.6000k03/180012", id.Serial)
	assert.Equal(t, "2.15.1.7", id.Firmware)
	assert.Equal(t, "Rohde&Schwarz SMB100A", id.String())

	opts, err := inst.Options(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B103", "K22"}, opts)

	require.NoError(t, inst.WaitComplete(ctx))
	require.NoError(t, inst.Reset(ctx))
	require.NoError(t, inst.ClearStatus(ctx))

	assert.Equal(t, []string{CmdIdentify, CmdOptions, CmdOperation, CmdReset, CmdClearStatus}, fake.Sent())
}

func TestParseIdentityShort(t *testing.T) {
	id, err := ParseIdentity("Agilent,U2041XA")
	require.NoError(t, err)
	assert.Equal(t, "U2041XA", id.Model)
	assert.Empty(t, id.Firmware)

	_, err = ParseIdentity("  ")
	assert.ErrorIs(t, err, property.ErrProtocol)
}

func TestPacing(t *testing.T) {
	fake := transport.NewFake(nil)
	inst := New("slow", fake, WithPacing(40*time.Millisecond))
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, inst.Write(ctx, "INIT"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestPacingHonoursCancellation(t *testing.T) {
	fake := transport.NewFake(nil)
	inst := New("slow", fake, WithPacing(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, inst.Write(ctx, "INIT"))
	err := inst.Write(ctx, "INIT")
	assert.ErrorIs(t, err, property.ErrCommunication)
	assert.Len(t, fake.Sent(), 1)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassNone, Classify(0))
	assert.Equal(t, ClassCommand, Classify(-113))
	assert.Equal(t, ClassExecution, Classify(-222))
	assert.Equal(t, ClassDevice, Classify(-350))
	assert.Equal(t, ClassQuery, Classify(-410))
	assert.Equal(t, ClassEvent, Classify(-800))
	assert.Equal(t, ClassVendor, Classify(113))
}

func TestPropertyCheckThroughInstrument(t *testing.T) {
	fake := transport.NewFake(nil)
	fake.Script(CmdNextError, `-113,"undefined header"`)
	inst := New("sa", fake)

	b := property.NewBinder(inst)
	p := property.Bind(b, "sweep_points",
		property.Control(property.Int, "SWE:POIN?", "SWE:POIN %s").CheckSetErrors())
	require.NoError(t, b.Err())

	err := p.Set(context.Background(), 625)
	var ie *property.InstrumentError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 113, -ie.Code)
	assert.Equal(t, []string{"SWE:POIN 625", CmdNextError}, fake.Sent())
}

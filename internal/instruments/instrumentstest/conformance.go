// Package instrumentstest checks that a driver's property table behaves
// uniformly, whatever the model.
package instrumentstest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vik-s/pymeasure/internal/instrument"
	"github.com/vik-s/pymeasure/internal/property"
	"github.com/vik-s/pymeasure/internal/transport"
)

// OpenFunc builds a driver on inst.
type OpenFunc func(inst *instrument.Instrument) (instrument.Driver, error)

// RunConformance runs the driver suite against a scripted link:
//
//   - every property binds and describes itself consistently
//   - reading a write-only or writing a read-only property fails before I/O
//   - an unparseable value for a validated property fails before I/O
//   - a link failure surfaces as ErrCommunication on every read
func RunConformance(t *testing.T, open OpenFunc) {
	t.Helper()

	newDriver := func(t *testing.T) (instrument.Driver, *transport.Fake) {
		t.Helper()
		fake := transport.NewFake(nil)
		d, err := open(instrument.New("conformance", fake))
		require.NoError(t, err)
		require.NoError(t, d.Properties().Err())
		return d, fake
	}

	t.Run("Describe", func(t *testing.T) {
		d, _ := newDriver(t)
		names := d.Properties().Names()
		require.NotEmpty(t, names)
		for _, name := range names {
			a, ok := d.Properties().Lookup(name)
			require.True(t, ok, name)
			desc := a.Describe()
			assert.Equal(t, name, a.Name())
			assert.Equal(t, name, desc.Name)
			assert.Equal(t, desc.Query != "", a.Readable(), "%s readable", name)
			assert.Equal(t, desc.Write != "", a.Writable(), "%s writable", name)
			assert.True(t, a.Readable() || a.Writable(), "%s has no template", name)
		}
	})

	t.Run("AccessGuards", func(t *testing.T) {
		d, fake := newDriver(t)
		ctx := context.Background()
		each(d, func(a property.Accessor) {
			if !a.Readable() {
				_, err := a.GetText(ctx)
				assert.ErrorIs(t, err, property.ErrNotReadable, a.Name())
			}
			if !a.Writable() {
				assert.ErrorIs(t, a.SetText(ctx, "1"), property.ErrNotWritable, a.Name())
			}
		})
		assert.Empty(t, fake.Sent())
	})

	t.Run("InvalidValues", func(t *testing.T) {
		d, fake := newDriver(t)
		ctx := context.Background()
		each(d, func(a property.Accessor) {
			if !a.Writable() || a.Describe().Validator == "" {
				return
			}
			err := a.SetText(ctx, "not-a-value")
			assert.ErrorIs(t, err, property.ErrInvalidValue, a.Name())
		})
		assert.Empty(t, fake.Sent())
	})

	t.Run("LinkFailure", func(t *testing.T) {
		d, fake := newDriver(t)
		fake.SimulateError("", errors.New("link down"))
		ctx := context.Background()
		each(d, func(a property.Accessor) {
			if !a.Readable() {
				return
			}
			_, err := a.GetText(ctx)
			assert.ErrorIs(t, err, property.ErrCommunication, a.Name())
		})
	})
}

func each(d instrument.Driver, fn func(property.Accessor)) {
	for _, name := range d.Properties().Names() {
		if a, ok := d.Properties().Lookup(name); ok {
			fn(a)
		}
	}
}

package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string

	d.Subscribe(EventVendorCreated, func(_ context.Context, e Event) error {
		seen = append(seen, "first:"+e.Subject)
		return errors.New("first failed")
	})
	d.Subscribe(EventVendorCreated, func(_ context.Context, e Event) error {
		seen = append(seen, "second:"+e.Subject)
		return nil
	})
	d.Subscribe(EventVendorUpdated, func(context.Context, Event) error {
		seen = append(seen, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventVendorCreated, Subject: "vendor_v1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first failed")
	assert.Equal(t, []string{"first:vendor_v1", "second:vendor_v1"}, seen)
}

func TestDispatcherWithoutListeners(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventVendorsSynced}))
}

func TestDispatcherRecoversPanickingHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got Event

	d.Subscribe(EventCustomerAssigned, func(context.Context, Event) error {
		panic("boom")
	})
	d.Subscribe(EventCustomerAssigned, func(_ context.Context, e Event) error {
		got = e
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventCustomerAssigned, Subject: "cust_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, "cust_1", got.Subject)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
}

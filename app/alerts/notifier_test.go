package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisNotifierAppendsEventToStream(t *testing.T) {
	server := miniredis.RunT(t)

	notifier, err := NewRedisNotifier(server.Addr(), "price-comb:alerts")
	require.NoError(t, err)
	defer notifier.Close()

	event := Event{
		AlertID:     "alert-1",
		Email:       "buyer@example.com",
		SearchTerm:  "phone x",
		ProductName: "Phone X 128GB",
		Price:       1490000,
		Source:      "store-a",
		Seller:      "store-a",
		TriggeredAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, notifier.Notify(context.Background(), event))

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	messages, err := client.XRange(context.Background(), "price-comb:alerts", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "alert-1", messages[0].Values["alert_id"])

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(messages[0].Values["event"].(string)), &decoded))
	assert.Equal(t, event.ProductName, decoded.ProductName)
	assert.Equal(t, event.Price, decoded.Price)
	assert.True(t, event.TriggeredAt.Equal(decoded.TriggeredAt))
}

func TestNewRedisNotifierFailsWithoutServer(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, err := NewRedisNotifier(addr, "price-comb:alerts")
	assert.Error(t, err)
}

type stubNotifier struct {
	calls int
	err   error
}

func (n *stubNotifier) Notify(ctx context.Context, event Event) error {
	n.calls++
	return n.err
}

func TestMultiNotifierNotifiesAllAndJoinsErrors(t *testing.T) {
	failing := &stubNotifier{err: errors.New("smtp down")}
	working := &stubNotifier{}

	err := MultiNotifier{failing, working, LogNotifier{}}.Notify(context.Background(), Event{AlertID: "a"})

	assert.ErrorContains(t, err, "smtp down")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, working.calls)

	assert.NoError(t, MultiNotifier{working}.Notify(context.Background(), Event{}))
}

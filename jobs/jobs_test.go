package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeCartPurger struct {
	count int
	err   error
	calls int
}

func (f *fakeCartPurger) PurgeExpired(context.Context) (int, error) {
	f.calls++
	return f.count, f.err
}

func TestCartPurgeJobRunsPurge(t *testing.T) {
	purger := &fakeCartPurger{count: 4}
	job := NewCartPurgeJob(purger, slog.Default())

	require.NoError(t, job.Handle(context.Background(), NewCartPurgeTask()))
	require.Equal(t, 1, purger.calls)
}

func TestCartPurgeJobPropagatesError(t *testing.T) {
	purger := &fakeCartPurger{err: errors.New("db down")}
	job := NewCartPurgeJob(purger, slog.Default())

	require.Error(t, job.Handle(context.Background(), NewCartPurgeTask()))
}

func TestNormalizePayloadFillsBusinessLine(t *testing.T) {
	h := &Handler{defaultPhone: "+237600000001"}

	got := h.normalizePayload(WhatsAppPayload{Kind: "order", OrderID: "o-1"})
	require.Equal(t, "+237600000001", got.Phone)

	got = h.normalizePayload(WhatsAppPayload{Kind: "order", Phone: "+237699999999"})
	require.Equal(t, "+237699999999", got.Phone)
}

package api

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/book-rental/logging"
	"github.com/warp/book-rental/rental"
	"github.com/warp/book-rental/rental/store"
)

func newScheduler(t *testing.T) (*ReconciliationScheduler, *rental.Engine) {
	t.Helper()
	engine, err := rental.NewEngine(store.NewMemory())
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewReconciliationScheduler(engine, logging.For(logger, "reconcile")), engine
}

func TestScheduler_StartRunsImmediatelyAndStops(t *testing.T) {
	// GIVEN: A scheduler with a long interval
	rs, engine := newScheduler(t)
	_, err := engine.CreateBook(context.Background(), rental.NewBook{Title: "Emma", Author: "Jane Austen", Copies: 1})
	require.NoError(t, err)
	rs.CheckInterval = time.Hour

	// WHEN: Started
	rs.Start()
	defer rs.Stop()

	// THEN: The first check runs without waiting for a tick
	require.Eventually(t, func() bool { return rs.State().Runs >= 1 }, 2*time.Second, 10*time.Millisecond)
	state := rs.State()
	require.NotNil(t, state.Last)
	assert.Equal(t, 1, state.Last.BooksChecked)
	assert.True(t, state.Last.Healthy())

	// AND: Stop is idempotent
	rs.Stop()
	rs.Stop()
}

func TestScheduler_Disabled(t *testing.T) {
	rs, _ := newScheduler(t)
	rs.Enabled = false
	rs.Start()
	rs.Stop()
	assert.Equal(t, 0, rs.State().Runs)
	assert.Nil(t, rs.State().Last)
}

func TestScheduler_Reset(t *testing.T) {
	rs, _ := newScheduler(t)
	_, err := rs.RunNow(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rs.State().Runs)

	rs.Reset()
	assert.Equal(t, 0, rs.State().Runs)
	assert.Nil(t, rs.State().Last)
}

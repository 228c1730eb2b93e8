package spell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedRunner serves a fixed result set in offset order.
type pagedRunner struct {
	rows  []map[string]any
	calls int
}

func (r *pagedRunner) Query(_ context.Context, sp *Spell) ([]map[string]any, error) {
	r.calls++
	start := sp.Skip
	if start > len(r.rows) {
		start = len(r.rows)
	}
	end := start + sp.RowCount
	if end > len(r.rows) {
		end = len(r.rows)
	}
	return r.rows[start:end], nil
}

func TestBatchPagesThrough(t *testing.T) {
	runner := &pagedRunner{rows: []map[string]any{
		{"id": 1}, {"id": 2}, {"id": 3}, {"id": 4}, {"id": 5},
	}}

	b := New(userModel()).Batch(2)
	ctx := context.Background()

	page, err := b.Next(ctx, runner)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, 1, page[0]["id"])

	page, err = b.Next(ctx, runner)
	require.NoError(t, err)
	assert.Equal(t, 3, page[0]["id"])

	// Short page means exhausted.
	page, err = b.Next(ctx, runner)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.Equal(t, 5, page[0]["id"])

	page, err = b.Next(ctx, runner)
	require.NoError(t, err)
	assert.Nil(t, page)
	assert.Equal(t, 3, runner.calls, "no query after exhaustion")
}

func TestBatchExactMultiple(t *testing.T) {
	runner := &pagedRunner{rows: []map[string]any{{"id": 1}, {"id": 2}}}

	b := New(userModel()).Batch(2)
	ctx := context.Background()

	page, err := b.Next(ctx, runner)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	// The next fetch comes back empty and ends iteration.
	page, err = b.Next(ctx, runner)
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestBatchDoesNotDisturbOrigin(t *testing.T) {
	q := New(userModel())
	_ = q.Batch(3)
	assert.Zero(t, q.RowCount)
	assert.Zero(t, q.Skip)
}

package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduper_FirstSightingIsNew(t *testing.T) {
	d := NewDeduper(time.Minute)

	assert.False(t, d.Seen(context.Background(), "abc123"))
	assert.True(t, d.Seen(context.Background(), "abc123"))
}

func TestDeduper_DistinctChecksums(t *testing.T) {
	d := NewDeduper(time.Minute)

	assert.False(t, d.Seen(context.Background(), "aaa"))
	assert.False(t, d.Seen(context.Background(), "bbb"))
}

func TestDeduper_WindowExpires(t *testing.T) {
	d := NewDeduper(10 * time.Millisecond)

	require.False(t, d.Seen(context.Background(), "abc"))
	require.Eventually(t, func() bool {
		return !d.Seen(context.Background(), "abc")
	}, time.Second, 20*time.Millisecond)
}

func TestDeduper_Reset(t *testing.T) {
	d := NewDeduper(time.Minute)

	require.True(t, !d.Seen(context.Background(), "abc"))
	d.Reset(context.Background())
	assert.False(t, d.Seen(context.Background(), "abc"))
}

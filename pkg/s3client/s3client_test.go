package s3client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	c := &S3Client{}
	for _, opt := range []Option{ConnAttempts(1), ConnTimeout(time.Second), Region("eu-1"), UsePathStyle(false), Bucket("audit")} {
		opt(c)
	}

	assert.Equal(t, 1, c.connAttempts)
	assert.Equal(t, time.Second, c.connTimeout)
	assert.Equal(t, "eu-1", c.region)
	assert.False(t, c.usePathStyle)
	assert.Equal(t, "audit", c.bucket)
}

func TestNewStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ctx, "http://127.0.0.1:1", "key", "secret", ConnAttempts(5), ConnTimeout(time.Hour), Bucket("audit"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

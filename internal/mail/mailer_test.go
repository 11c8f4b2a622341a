package mail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSMTPDispatcher_SendAfterClose(t *testing.T) {
	d := NewSMTPDispatcher("127.0.0.1:1", "no-reply@localhost", zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	// A request racing shutdown must drop the message, not panic.
	require.NotPanics(t, func() {
		d.Send("late@example.com", "subject", "body")
	})
}

func TestSMTPDispatcher_CloseIsIdempotent(t *testing.T) {
	d := NewSMTPDispatcher("127.0.0.1:1", "no-reply@localhost", zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	require.NoError(t, d.Close(ctx))
}

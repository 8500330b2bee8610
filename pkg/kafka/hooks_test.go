package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"ExecGuard/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookFuncs_NilFunctionsAreNoops(t *testing.T) {
	var h HookFuncs
	ctx := context.Background()
	km := kafka.Message{Topic: "t", Offset: 7}

	gotCtx, gotMsg, data, err := h.BeforeHandle(ctx, "t", km, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, ctx, gotCtx)
	assert.Equal(t, int64(7), gotMsg.Offset)
	assert.Equal(t, []byte("x"), data)

	h.AfterHandle(ctx, "t", km, nil, nil)
	h.OnError(ctx, "t", km, nil, errors.New("x"))
}

func TestLoggingHook_StampsStartTime(t *testing.T) {
	h := LoggingHook(logger.NewNop(), time.Millisecond)

	ctx, _, _, err := h.BeforeHandle(context.Background(), "pnl", kafka.Message{}, nil)
	require.NoError(t, err)
	_, ok := ctx.Value(CtxStartTime).(time.Time)
	assert.True(t, ok)

	h.AfterHandle(ctx, "pnl", kafka.Message{}, nil, errors.New("boom"))
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(50*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	b, err = encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	_, err = encodeValue(func() {})
	assert.Error(t, err)
}

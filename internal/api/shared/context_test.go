package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	withTrace := SetTraceID(ctx)
	traceID := GetTraceID(withTrace)
	assert.Len(t, traceID, 32)
	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err)

	assert.Empty(t, GetTraceID(ctx), "parent context must be unchanged")
}

func TestGetTraceIDWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestGenerateTraceIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 500)
	for i := 0; i < 500; i++ {
		id := generateTraceID(rand.Read)
		require.Len(t, id, 32)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestGenerateTraceIDFallback(t *testing.T) {
	failing := func([]byte) (int, error) { return 0, errors.New("simulated rand failure") }
	short := func(b []byte) (int, error) { return io.ReadFull(rand.Reader, b[:TraceIDLength/2]) }

	for name, read := range map[string]func([]byte) (int, error){"error": failing, "short read": short} {
		t.Run(name, func(t *testing.T) {
			a := generateTraceID(read)
			b := generateTraceID(read)
			assert.Len(t, a, 32)
			assert.NotEqual(t, a, b)
			_, err := hex.DecodeString(a)
			assert.NoError(t, err)
		})
	}
}

func TestUserIDFromContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = UserIDFromContext(WithUserID(context.Background(), uuid.Nil))
	assert.False(t, ok, "nil id is not an authenticated user")

	id := uuid.New()
	got, ok := UserIDFromContext(WithUserID(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

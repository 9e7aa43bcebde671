package messaging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/mailworker/internal/notification"
)

func TestConsoleStatusPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsoleStatusPublisher(slog.New(slog.NewTextHandler(&buf, nil)))
	id := uuid.New()

	require.NoError(t, p.PublishStatus(context.Background(), id, notification.StatusFailed, "smtp down"))
	out := buf.String()
	assert.Contains(t, out, "status update")
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, "status=Failed")
	assert.Contains(t, out, `error="smtp down"`)

	buf.Reset()
	require.NoError(t, p.PublishStatus(context.Background(), id, notification.StatusSent, ""))
	assert.NotContains(t, buf.String(), "error=")
}

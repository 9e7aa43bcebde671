package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/mailworker/internal/metrics"
	"github.com/shaharia-lab/mailworker/internal/service"
)

func validBody(t *testing.T) []byte {
	t.Helper()
	data, err := FromCommand(service.ProcessEmailCommand{
		NotificationID:   uuid.New(),
		RecipientAddress: "a@b.com",
		Subject:          "Hi",
		Body:             "hello",
		Priority:         1,
	}).Encode()
	require.NoError(t, err)
	return data
}

type handlerFunc = service.HandlerFunc[service.ProcessEmailCommand, struct{}]

func okHandler() handlerFunc {
	return func(context.Context, service.ProcessEmailCommand) (service.Result[struct{}], error) {
		return service.Ok(), nil
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name    string
		body    func(t *testing.T) []byte
		handler handlerFunc
		want    Decision
	}{
		{
			name:    "success acks",
			body:    validBody,
			handler: okHandler(),
			want:    Ack,
		},
		{
			name: "business failure acks",
			body: validBody,
			handler: func(context.Context, service.ProcessEmailCommand) (service.Result[struct{}], error) {
				return service.Failure[struct{}](service.ErrSendFailed("boom")), nil
			},
			want: Ack,
		},
		{
			name: "handler error requeues",
			body: validBody,
			handler: func(context.Context, service.ProcessEmailCommand) (service.Result[struct{}], error) {
				return service.Result[struct{}]{}, errors.New("status channel down")
			},
			want: Requeue,
		},
		{
			name: "panic requeues",
			body: validBody,
			handler: func(context.Context, service.ProcessEmailCommand) (service.Result[struct{}], error) {
				panic("kaboom")
			},
			want: Requeue,
		},
		{
			name:    "undecodable requeues",
			body:    func(*testing.T) []byte { return []byte("{oops") },
			handler: okHandler(),
			want:    Requeue,
		},
		{
			name:    "null payload acks",
			body:    func(*testing.T) []byte { return []byte("null") },
			handler: okHandler(),
			want:    Ack,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(tt.handler, "test", nil, nil)
			assert.Equal(t, tt.want, d.Dispatch(context.Background(), tt.body(t)))
		})
	}
}

func TestDispatch_NullPayloadSkipsHandler(t *testing.T) {
	called := false
	h := handlerFunc(func(context.Context, service.ProcessEmailCommand) (service.Result[struct{}], error) {
		called = true
		return service.Ok(), nil
	})
	NewDispatcher(h, "test", nil, nil).Dispatch(context.Background(), []byte("null"))
	assert.False(t, called)
}

func TestDispatch_RecordsDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	d := NewDispatcher(okHandler(), "redis", nil, m)

	d.Dispatch(context.Background(), validBody(t))
	d.Dispatch(context.Background(), []byte("{oops"))

	n, err := testutil.GatherAndCount(reg, "mailworker_deliveries_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "ack", Ack.String())
	assert.Equal(t, "requeue", Requeue.String())
}

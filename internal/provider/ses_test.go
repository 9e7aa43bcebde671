package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/mailworker/internal/notification"
)

type mockSES struct {
	mock.Mock
}

func (m *mockSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sesv2.SendEmailOutput), args.Error(1)
}

func TestSES_Send(t *testing.T) {
	client := &mockSES{}
	var in *sesv2.SendEmailInput
	client.On("SendEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { in = args.Get(1).(*sesv2.SendEmailInput) }).
		Return(&sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil)

	n := newTestNotification(t, true, notification.PriorityCritical)
	tr := newSES(client, SESConfig{FromAddress: "noreply@example.com", FromName: "Ops", ConfigurationSet: "tracking"}, nil)
	res, err := tr.Send(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, notification.SendResult{Success: true, MessageID: "ses-1"}, res)
	assert.Equal(t, "ses", tr.Name())

	require.NotNil(t, in)
	assert.Equal(t, "Ops <noreply@example.com>", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"Alice <alice@example.com>"}, in.Destination.ToAddresses)
	assert.Equal(t, "Hello", aws.ToString(in.Content.Simple.Subject.Data))
	require.NotNil(t, in.Content.Simple.Body.Html)
	assert.Nil(t, in.Content.Simple.Body.Text)
	assert.Equal(t, "tracking", aws.ToString(in.ConfigurationSetName))
	assert.Equal(t, n.NotificationID().String(), aws.ToString(in.EmailTags[0].Value))
}

func TestSES_PlainTextWithoutConfigurationSet(t *testing.T) {
	client := &mockSES{}
	var in *sesv2.SendEmailInput
	client.On("SendEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { in = args.Get(1).(*sesv2.SendEmailInput) }).
		Return(&sesv2.SendEmailOutput{}, nil)

	_, err := newSES(client, SESConfig{FromAddress: "noreply@example.com"}, nil).
		Send(context.Background(), newTestNotification(t, false, notification.PriorityLow))
	require.NoError(t, err)

	assert.Equal(t, "noreply@example.com", aws.ToString(in.FromEmailAddress))
	require.NotNil(t, in.Content.Simple.Body.Text)
	assert.Nil(t, in.Content.Simple.Body.Html)
	assert.Nil(t, in.ConfigurationSetName)
}

func TestSES_APIError(t *testing.T) {
	client := &mockSES{}
	client.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("MessageRejected: address not verified"))

	res, err := newSES(client, SESConfig{}, nil).Send(context.Background(), newTestNotification(t, false, notification.PriorityNormal))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "MessageRejected: address not verified", res.ErrorMessage)
}

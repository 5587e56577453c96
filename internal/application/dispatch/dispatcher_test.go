package dispatch

import (
	"context"
	"testing"

	"github.com/linkfolio-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, phone, msg string) error {
	return m.Called(ctx, phone, msg).Error(0)
}

func TestDeliver_EmailChannel_RoutesToMailer(t *testing.T) {
	ml := &mockMailer{}
	ml.On("SendEmail", "a@b.com", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	d := New(ml, nil, 10)
	err := d.Deliver(context.Background(), domain.ChannelEmail, "a@b.com", "123456")

	require.NoError(t, err)
	ml.AssertExpectations(t)
	// The code itself must appear in the message body.
	body := ml.Calls[0].Arguments.String(2)
	assert.Contains(t, body, "123456")
	assert.Contains(t, body, "10 minutes")
}

func TestDeliver_PhoneChannel_RoutesToSMS(t *testing.T) {
	sms := &mockSMSSender{}
	sms.On("SendSMS", mock.Anything, "+15551230000", mock.AnythingOfType("string")).Return(nil)

	d := New(nil, sms, 10)
	err := d.Deliver(context.Background(), domain.ChannelPhone, "+15551230000", "654321")

	require.NoError(t, err)
	sms.AssertExpectations(t)
	assert.Contains(t, sms.Calls[0].Arguments.String(2), "654321")
}

func TestDeliver_UnknownChannel_FailsLoudly(t *testing.T) {
	d := New(&mockMailer{}, &mockSMSSender{}, 10)
	err := d.Deliver(context.Background(), "carrier-pigeon", "x", "123456")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestDeliver_EmailWithoutMailer_Fails(t *testing.T) {
	d := New(nil, &mockSMSSender{}, 10)
	err := d.Deliver(context.Background(), domain.ChannelEmail, "a@b.com", "123456")
	require.Error(t, err)
}

func TestDeliver_PhoneWithoutGateway_Fails(t *testing.T) {
	d := New(&mockMailer{}, nil, 10)
	err := d.Deliver(context.Background(), domain.ChannelPhone, "+15551230000", "123456")
	require.Error(t, err)
}

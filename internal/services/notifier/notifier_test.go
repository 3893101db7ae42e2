package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, message any) error {
	return m.Called(ctx, message).Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendAdminNotification(ctx context.Context, n models.AdminNotification) error {
	return m.Called(ctx, n).Error(0)
}

func TestNotifyAdmin(t *testing.T) {
	ctx := context.Background()
	msg := models.AdminNotification{Type: models.NotificationPayment, Subject: "Новая оплата курса"}

	tests := []struct {
		name         string
		withQueue    bool
		publishErr   error
		mailErr      error
		wantErr      bool
		expectMailer bool
	}{
		{name: "queue configured", withQueue: true},
		{name: "queue fails", withQueue: true, publishErr: errors.New("channel closed"), wantErr: true},
		{name: "direct email", expectMailer: true},
		{name: "direct email fails", expectMailer: true, mailErr: errors.New("smtp down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := new(MockMailer)
			var pub Publisher
			mp := new(MockPublisher)
			if tt.withQueue {
				mp.On("Publish", ctx, msg).Return(tt.publishErr)
				pub = mp
			}
			if tt.expectMailer {
				mailer.On("SendAdminNotification", ctx, msg).Return(tt.mailErr)
			}

			err := New(sl.Discard(), pub, mailer).NotifyAdmin(ctx, msg)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			mp.AssertExpectations(t)
			mailer.AssertExpectations(t)
			if !tt.expectMailer {
				mailer.AssertNotCalled(t, "SendAdminNotification", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestSendDirect_BypassesQueue(t *testing.T) {
	ctx := context.Background()
	msg := models.AdminNotification{Message: "hello"}
	pub := new(MockPublisher)
	mailer := new(MockMailer)
	mailer.On("SendAdminNotification", ctx, msg).Return(nil)

	require.NoError(t, New(sl.Discard(), pub, mailer).SendDirect(ctx, msg))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	mailer.AssertExpectations(t)
}

func TestNotifyAdmin_NilPublisherInterface(t *testing.T) {
	mailer := new(MockMailer)
	mailer.On("SendAdminNotification", mock.Anything, mock.Anything).Return(nil)
	n := New(sl.Discard(), nil, mailer)
	assert.NoError(t, n.NotifyAdmin(context.Background(), models.AdminNotification{}))
}

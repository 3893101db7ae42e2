package sender

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/magabrotheeeer/bankrot-course/internal/config"
	"github.com/magabrotheeeer/bankrot-course/internal/lib/sl"
	"github.com/magabrotheeeer/bankrot-course/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (gomail.SendCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(gomail.SendCloser), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	args := m.Called()
	return args.String(0)
}

// sentMail письмо, перехваченное fakeSendCloser.
type sentMail struct {
	from    string
	to      []string
	subject string
	body    string
}

type fakeSendCloser struct {
	sendErr error
	closed  bool
	mails   []sentMail
}

func (f *fakeSendCloser) Send(from string, to []string, msg io.WriterTo) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	var raw bytes.Buffer
	if _, err := msg.WriteTo(&raw); err != nil {
		return err
	}
	parsed, err := mail.ReadMessage(&raw)
	if err != nil {
		return err
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil {
		return err
	}
	body, err := io.ReadAll(quotedprintable.NewReader(parsed.Body))
	if err != nil {
		return err
	}
	f.mails = append(f.mails, sentMail{from: from, to: to, subject: subject, body: string(body)})
	return nil
}

func (f *fakeSendCloser) Close() error {
	f.closed = true
	return nil
}

var smtpCfg = config.SMTP{
	Host:       "smtp.yandex.ru",
	Port:       465,
	User:       "robot@bankrot-kurs.ru",
	Password:   "secret",
	AdminEmail: "admin@bankrot-kurs.ru",
}

func newTestSender(t *testing.T, client gomail.SendCloser, connectErr error) (*SenderService, *MockTransport) {
	t.Helper()
	tr := new(MockTransport)
	tr.On("GetSMTPUser").Return("robot@bankrot-kurs.ru")
	if client != nil || connectErr != nil {
		tr.On("Connect").Return(client, connectErr)
	}
	return NewSenderService(smtpCfg, sl.Discard(), tr), tr
}

func TestSendAdminNotification(t *testing.T) {
	client := &fakeSendCloser{}
	s, tr := newTestSender(t, client, nil)

	err := s.SendAdminNotification(context.Background(), models.AdminNotification{
		Type:    models.NotificationPayment,
		Subject: "Новая оплата курса",
		Message: "Клиент Иван Петров успешно оплатил курс",
		Data:    map[string]any{"payment_id": "pay-1", "amount": 2999},
	})
	require.NoError(t, err)
	tr.AssertExpectations(t)
	assert.True(t, client.closed)

	require.Len(t, client.mails, 1)
	got := client.mails[0]
	assert.Equal(t, "robot@bankrot-kurs.ru", got.from)
	assert.Equal(t, []string{"admin@bankrot-kurs.ru"}, got.to)
	assert.Equal(t, "Новая оплата курса", got.subject)
	assert.Contains(t, got.body, "Клиент Иван Петров успешно оплатил курс")
	assert.Contains(t, got.body, "Тип события: payment")
	assert.Contains(t, got.body, "&#34;payment_id&#34;: &#34;pay-1&#34;")
}

func TestSendAdminNotification_Defaults(t *testing.T) {
	client := &fakeSendCloser{}
	s, _ := newTestSender(t, client, nil)

	require.NoError(t, s.SendAdminNotification(context.Background(), models.AdminNotification{Message: "<b>привет</b>"}))
	require.Len(t, client.mails, 1)
	assert.Equal(t, "Уведомление с сайта", client.mails[0].subject)
	assert.Contains(t, client.mails[0].body, "Тип события: general")
	assert.Contains(t, client.mails[0].body, "&lt;b&gt;привет&lt;/b&gt;")
	assert.NotContains(t, client.mails[0].body, "Детали:")
}

func TestSendAdminNotification_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := NewSenderService(config.SMTP{}, sl.Discard(), new(MockTransport))
		err := s.SendAdminNotification(context.Background(), models.AdminNotification{Message: "x"})
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("connect fails", func(t *testing.T) {
		s, _ := newTestSender(t, nil, errors.New("dial tcp: timeout"))
		err := s.SendAdminNotification(context.Background(), models.AdminNotification{Message: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dial tcp")
	})

	t.Run("send fails", func(t *testing.T) {
		client := &fakeSendCloser{sendErr: errors.New("550 mailbox unavailable")}
		s, _ := newTestSender(t, client, nil)
		err := s.SendAdminNotification(context.Background(), models.AdminNotification{Message: "x"})
		require.Error(t, err)
		assert.True(t, client.closed)
	})
}

func TestHandleAdminMessage(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		client := &fakeSendCloser{}
		s, _ := newTestSender(t, client, nil)
		err := s.HandleAdminMessage(context.Background(), []byte(`{"type":"payment","subject":"Оплата","message":"ok"}`))
		require.NoError(t, err)
		require.Len(t, client.mails, 1)
		assert.Equal(t, "Оплата", client.mails[0].subject)
	})

	t.Run("broken json", func(t *testing.T) {
		s, _ := newTestSender(t, nil, nil)
		err := s.HandleAdminMessage(context.Background(), []byte(`{`))
		require.Error(t, err)
	})
}

func TestSendPasswordReset(t *testing.T) {
	client := &fakeSendCloser{}
	s, _ := newTestSender(t, client, nil)

	link := "https://bankrot-kurs.ru/reset-password?token=abc_DEF-123"
	require.NoError(t, s.SendPasswordReset(context.Background(), "user@example.com", "Анна", link, time.Hour))

	require.Len(t, client.mails, 1)
	got := client.mails[0]
	assert.Equal(t, []string{"user@example.com"}, got.to)
	assert.Equal(t, "Восстановление пароля", got.subject)
	assert.Contains(t, got.body, "Здравствуйте, Анна!")
	assert.Contains(t, got.body, `href="https://bankrot-kurs.ru/reset-password?token=abc_DEF-123"`)
	assert.Contains(t, got.body, "в течение 1 часа")
}

func TestSendCredentials(t *testing.T) {
	client := &fakeSendCloser{}
	s, _ := newTestSender(t, client, nil)

	require.NoError(t, s.SendCredentials(context.Background(), "user@example.com", "Анна", "a1b2c3d4", "https://bankrot-kurs.ru/login"))

	require.Len(t, client.mails, 1)
	got := client.mails[0]
	assert.Equal(t, `Доступ к курсу "Банкротство физических лиц"`, got.subject)
	assert.Contains(t, got.body, "a1b2c3d4")
	assert.Contains(t, got.body, "user@example.com")
	assert.Contains(t, got.body, "https://bankrot-kurs.ru/login")
}

func TestHumanizeTTL(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want string
	}{
		{ttl: time.Hour, want: "1 часа"},
		{ttl: 2 * time.Hour, want: "2 ч."},
		{ttl: 30 * time.Minute, want: "30 мин."},
		{ttl: 0, want: "1 часа"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanizeTTL(tt.ttl))
	}
}

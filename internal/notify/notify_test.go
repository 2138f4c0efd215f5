package notify

import (
	"context"
	"errors"
	"html/template"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-demo-booking/internal/config"
	"ms-demo-booking/internal/logger"
)

func TestNew_PicksSender(t *testing.T) {
	_, isLog := New(config.EmailConfig{}, logger.Discard()).(*LogSender)
	assert.True(t, isLog)

	_, isSMTP := New(config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: "587"}, logger.Discard()).(*SMTPSender)
	assert.True(t, isSMTP)
}

func TestSMTPSender_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte

	s := &SMTPSender{
		Host:     "smtp.example.com",
		Port:     "587",
		Username: "bookings@codeverse.edu",
		Password: "secret",
		FromName: "CODEVERSE ACADEMY",
		Logger:   logger.Discard(),
		sendMail: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
			return nil
		},
	}

	err := s.Send(context.Background(), Message{To: "asha@example.com", Subject: "Hi", HTML: "<p>hello</p>"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "bookings@codeverse.edu", gotFrom)
	assert.Equal(t, []string{"asha@example.com"}, gotTo)
	assert.Contains(t, string(gotBody), "Subject: Hi\r\n")
	assert.Contains(t, string(gotBody), "Content-Type: text/html")
	assert.Contains(t, string(gotBody), `From: "CODEVERSE ACADEMY" <bookings@codeverse.edu>`)
	assert.Contains(t, string(gotBody), "<p>hello</p>")
}

func TestSMTPSender_SendFailure(t *testing.T) {
	s := &SMTPSender{
		Host:   "smtp.example.com",
		Port:   "587",
		Logger: logger.Discard(),
		sendMail: func(string, smtp.Auth, string, []string, []byte) error {
			return errors.New("connection refused")
		},
	}

	err := s.Send(context.Background(), Message{To: "asha@example.com", Subject: "Hi"})
	assert.Error(t, err)
}

func TestConfirmationMessage(t *testing.T) {
	msg, err := ConfirmationMessage("asha@example.com", Confirmation{
		Name:        "Asha <Rao>",
		SessionDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		CourseName:  "fast-track",
		TicketID:    "ticket-1",
		TicketURL:   "http://localhost:3000/tickets/ticket-1",
		QRImage:     template.URL("data:image/png;base64,AAAA"),
	})
	require.NoError(t, err)

	assert.Equal(t, "asha@example.com", msg.To)
	assert.Equal(t, ConfirmationSubject, msg.Subject)
	assert.Contains(t, msg.HTML, "Saturday, March 14, 2026")
	assert.Contains(t, msg.HTML, "fast-track")
	assert.Contains(t, msg.HTML, "ticket-1")
	assert.Contains(t, msg.HTML, VenueAddress)
	assert.Contains(t, msg.HTML, ContactPhone)
	assert.NotContains(t, msg.HTML, "&#43;91", "contact phone renders literally")
	assert.Contains(t, msg.HTML, `src="data:image/png;base64,AAAA"`)
	assert.Contains(t, msg.HTML, "Asha &lt;Rao&gt;", "attendee names are escaped")
}

func TestCancellationMessage(t *testing.T) {
	msg, err := CancellationMessage("asha@example.com", Cancellation{Name: "Asha", TicketID: "ticket-1"})
	require.NoError(t, err)

	assert.Equal(t, CancellationSubject, msg.Subject)
	assert.Contains(t, msg.HTML, "Your ticket (ID: ticket-1) has been cancelled.")
	assert.Contains(t, msg.HTML, SupportEmail)
}

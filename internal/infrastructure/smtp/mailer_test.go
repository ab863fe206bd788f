package smtp

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := string(buildMessage("noreply@xu.edu.ph", "ana@my.xu.edu.ph", "Sign in", "line1\nline2", at))
	assert.True(t, strings.HasPrefix(msg, "From: noreply@xu.edu.ph\r\nTo: ana@my.xu.edu.ph\r\nSubject: Sign in\r\n"))
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\nline1\r\nline2")
}

func TestSendEmail(t *testing.T) {
	var gotAddr string
	var gotTo []string
	m := &mailer{host: "localhost", port: "1025", from: "noreply@xu.edu.ph",
		send: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotTo = addr, to
			assert.Nil(t, a)
			return nil
		}}
	require.NoError(t, m.SendEmail(context.Background(), "ana@my.xu.edu.ph", "s", "b"))
	assert.Equal(t, "localhost:1025", gotAddr)
	assert.Equal(t, []string{"ana@my.xu.edu.ph"}, gotTo)
}

func TestSendEmail_CancelledContext(t *testing.T) {
	called := false
	m := &mailer{send: func(string, smtp.Auth, string, []string, []byte) error { called = true; return nil }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(m.SendEmail(ctx, "a@x.com", "s", "b"), context.Canceled))
	assert.False(t, called)
}

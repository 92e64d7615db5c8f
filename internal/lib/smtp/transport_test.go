package smtp

import (
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subman/internal/config"
)

// fakeServer отвечает на приветствие и EHLO без расширения STARTTLS.
func fakeServer(t *testing.T) config.SMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP")
		if _, err := tp.ReadLine(); err != nil {
			return
		}
		_ = tp.PrintfLine("250-localhost")
		_ = tp.PrintfLine("250 8BITMIME")
		_, _ = tp.ReadLine()
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return config.SMTP{Host: host, Port: port, User: "mailer@example.com"}
}

func TestTransport_Connect_RequiresStartTLS(t *testing.T) {
	tr := NewTransport(fakeServer(t), slog.New(slog.NewTextHandler(io.Discard, nil)))

	client, err := tr.Connect()
	assert.ErrorIs(t, err, ErrNoStartTLS)
	assert.Nil(t, client)
}

func TestTransport_Connect_DialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	tr := NewTransport(config.SMTP{Host: host, Port: port}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err = tr.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp.Connect")
}

func TestTransport_From(t *testing.T) {
	tr := NewTransport(config.SMTP{User: "mailer@example.com", From: "noreply@example.com"}, slog.Default())
	assert.Equal(t, "noreply@example.com", tr.From())
}

package service

import (
	"bufio"
	"context"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/changenotify/internal/config"
	edomain "github.com/corvusHold/changenotify/internal/email/domain"
	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

// fakeSMTP accepts one session and rejects recipients in reject.
type fakeSMTP struct {
	ln     net.Listener
	reject string

	mu   sync.Mutex
	data string
	rcpt []string
}

func startFakeSMTP(t *testing.T, reject string) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeSMTP{ln: ln, reject: reject}
	t.Cleanup(func() { _ = ln.Close() })
	go f.serve()
	return f
}

func (f *fakeSMTP) port() int { return f.ln.Addr().(*net.TCPAddr).Port }

func (f *fakeSMTP) serve() {
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 fake ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			_ = tp.PrintfLine("250-fake")
			_ = tp.PrintfLine("250 8BITMIME")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			_ = tp.PrintfLine("250 ok")
		case strings.HasPrefix(cmd, "RCPT TO"):
			if f.reject != "" && strings.Contains(line, f.reject) {
				_ = tp.PrintfLine("550 no such user")
				continue
			}
			f.mu.Lock()
			f.rcpt = append(f.rcpt, line)
			f.mu.Unlock()
			_ = tp.PrintfLine("250 ok")
		case cmd == "DATA":
			_ = tp.PrintfLine("354 go ahead")
			body, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			f.mu.Lock()
			f.data = string(body)
			f.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case cmd == "RSET":
			_ = tp.PrintfLine("250 ok")
		case cmd == "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 unsupported")
		}
	}
}

func newTestSMTP(port int) *SMTP {
	ms := mockSettings{vals: map[string]string{sdomain.KeySMTPHost: "127.0.0.1"}}
	return NewSMTP(intSettings{mockSettings: ms, port: port}, config.Config{SMTPFrom: "no-reply@local.dev"})
}

// intSettings serves the smtp port through GetInt.
type intSettings struct {
	mockSettings
	port int
}

func (s intSettings) GetInt(ctx context.Context, key string, def int) (int, error) {
	if key == sdomain.KeySMTPPort {
		return s.port, nil
	}
	return def, nil
}

func TestSMTP_Send(t *testing.T) {
	srv := startFakeSMTP(t, "")
	s := newTestSMTP(srv.port())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := s.Send(ctx, edomain.Message{
		FromAddress: "shop@example.com", FromName: "Shop", To: "member@example.com",
		Subject: "your profile was changed", Body: "line one\nline two",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Contains(t, srv.data, "To: member@example.com")
	assert.Contains(t, srv.data, "line one\nline two")
	require.Len(t, srv.rcpt, 1)
}

func TestSMTP_RejectedRecipientIsSoftFailure(t *testing.T) {
	srv := startFakeSMTP(t, "ghost@example.com")
	s := newTestSMTP(srv.port())

	n, err := s.Send(context.Background(), edomain.Message{FromAddress: "shop@example.com", To: "ghost@example.com"})

	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSMTP_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	_, err = newTestSMTP(port).Send(context.Background(), edomain.Message{To: "a@example.com"})
	assert.ErrorContains(t, err, "smtp dial")
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	raw := string(buildMessage("shop@example.com", edomain.Message{
		FromName: "Shop", To: "m@example.com", Subject: "プロフィール変更", Body: "a\nb",
	}, now))

	r := textproto.NewReader(bufio.NewReader(strings.NewReader(raw)))
	h, err := r.ReadMIMEHeader()
	require.NoError(t, err)
	assert.Equal(t, `"Shop" <shop@example.com>`, h.Get("From"))
	assert.True(t, strings.HasPrefix(h.Get("Subject"), "=?utf-8?q?"), h.Get("Subject"))
	assert.Equal(t, "text/plain; charset=utf-8", h.Get("Content-Type"))
	assert.Equal(t, now.Format(time.RFC1123Z), h.Get("Date"))
	assert.True(t, strings.HasSuffix(raw, "a\r\nb\r\n"), strconv.Quote(raw))
}

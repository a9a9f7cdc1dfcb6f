package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedwatch/internal/domain"
)

func discard() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testMessage(t *testing.T) Message {
	t.Helper()
	msg, err := BuildMessage(KindPush, 4, time.Date(2025, 12, 5, 8, 0, 0, 0, time.UTC), "https://site.example")
	require.NoError(t, err)
	return msg
}

func TestWechatSink_Send(t *testing.T) {
	var got *url.URL
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		worker string
	}{
		{"base url", srv.URL},
		{"trailing slash", srv.URL + "/"},
		{"explicit path", srv.URL + "/wxsend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewWechatSink(WechatConfig{WorkerURL: tt.worker, Token: "tok"}, srv.Client(), discard())
			require.NoError(t, s.Validate())
			require.NoError(t, s.Send(context.Background(), testMessage(t)))

			require.NotNil(t, got)
			assert.Equal(t, "/wxsend", got.Path)
			q := got.Query()
			assert.Equal(t, "tok", q.Get("token"))
			assert.Equal(t, pushTitle, q.Get("title"))
			assert.Contains(t, q.Get("content"), "今日有 4 条新内容")
			assert.Equal(t, "https://site.example", q.Get("site"))
		})
	}
}

func TestWechatSink_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewWechatSink(WechatConfig{WorkerURL: srv.URL, Token: "tok"}, srv.Client(), discard())
	err := s.Send(context.Background(), testMessage(t))
	require.ErrorIs(t, err, domain.ErrDelivery)
	assert.Contains(t, err.Error(), "401")
}

func TestWechatSink_Validate(t *testing.T) {
	assert.Error(t, NewWechatSink(WechatConfig{Token: "tok"}, nil, discard()).Validate())
	assert.Error(t, NewWechatSink(WechatConfig{WorkerURL: "https://w.example"}, nil, discard()).Validate())
}

func TestTelegramSink_Send(t *testing.T) {
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	}))
	defer srv.Close()

	s := NewTelegramSink(TelegramConfig{Token: "123:abc", ChatID: "42"}, discard(),
		tgbot.WithServerURL(srv.URL), tgbot.WithSkipGetMe())
	require.NoError(t, s.Validate())
	require.NoError(t, s.Send(context.Background(), testMessage(t)))

	assert.True(t, strings.HasSuffix(path, "/sendMessage"))
	assert.Contains(t, body, "今日有 4 条新内容")
}

func TestTelegramSink_Validate(t *testing.T) {
	assert.Error(t, NewTelegramSink(TelegramConfig{Token: "t"}, discard()).Validate())
}

func TestMailSink(t *testing.T) {
	s := NewMailSink(MailConfig{
		Host:     "smtp.qq.com",
		Port:     465,
		Username: "me@qq.com",
		Password: "secret",
	}, discard())
	require.NoError(t, s.Validate())

	m, err := s.newMsg(testMessage(t))
	require.NoError(t, err)
	rcpts, err := m.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"me@qq.com"}, rcpts, "defaults to mailing the sender")

	assert.Error(t, NewMailSink(MailConfig{Host: "smtp.qq.com", Port: 465}, discard()).Validate())

	byIP := NewMailSink(MailConfig{Host: "10.0.0.25", Port: 465, Username: "me@qq.com", Password: "secret"}, discard())
	assert.NoError(t, byIP.Validate(), "an IP address is a valid SMTP host")
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2025, 12, 5, 8, 30, 0, 0, time.UTC)

	digest, err := BuildMessage(KindDigest, 7, now, "")
	require.NoError(t, err)
	assert.Equal(t, "动态监控日报 - 2025年12月5日", digest.Subject)
	assert.Contains(t, digest.HTML, ">7<")
	assert.Contains(t, digest.HTML, "请访问网站查看详情")

	manual, err := BuildMessage(KindManualDigest, 2, now, "https://site.example")
	require.NoError(t, err)
	assert.Equal(t, "动态监控站 - 最新动态 (2025-12-05 08:30)", manual.Subject)
	assert.Contains(t, manual.HTML, `href="https://site.example"`)
	assert.Equal(t, "今日有 2 条新内容\n\n2025年12月5日\n\n请访问网站查看详情", manual.Content)
}

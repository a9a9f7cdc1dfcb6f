package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"feedwatch/internal/domain"
)

// WechatConfig points at the relay worker that forwards to WeChat.
type WechatConfig struct {
	WorkerURL string `validate:"required,url"`
	Token     string `validate:"required"`
}

// WechatSink pushes the message with a GET to <worker>/wxsend.
type WechatSink struct {
	cfg    WechatConfig
	client *http.Client
	log    logrus.FieldLogger
}

func NewWechatSink(cfg WechatConfig, client *http.Client, logger logrus.FieldLogger) *WechatSink {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WechatSink{cfg: cfg, client: client, log: logger.WithField("component", "wechat_sink")}
}

func (s *WechatSink) Name() string { return "wechat" }

func (s *WechatSink) Validate() error {
	return validate.Struct(s.cfg)
}

func (s *WechatSink) Send(ctx context.Context, msg Message) error {
	endpoint, err := s.endpoint(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %w", domain.ErrDelivery, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: push request failed: %w", domain.ErrDelivery, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: push returned HTTP %d: %s", domain.ErrDelivery, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	s.log.WithField("response", strings.TrimSpace(string(body))).Info("WeChat push sent")
	return nil
}

// endpoint appends /wxsend unless the worker URL already ends with it.
func (s *WechatSink) endpoint(msg Message) (string, error) {
	raw := strings.TrimSpace(s.cfg.WorkerURL)
	if !strings.HasSuffix(raw, "/wxsend") && !strings.Contains(raw, "/wxsend?") {
		raw = strings.TrimRight(raw, "/") + "/wxsend"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid worker URL: %w", err)
	}

	q := u.Query()
	q.Set("token", s.cfg.Token)
	q.Set("title", msg.Title)
	q.Set("content", msg.Content)
	q.Set("site", msg.Link)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

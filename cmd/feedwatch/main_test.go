package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	_ "time/tzdata"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedwatch/internal/domain"
	"feedwatch/internal/secret"
	"feedwatch/internal/snapshot"
	"feedwatch/internal/storage"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"config", fmt.Errorf("%w: DATA_ENCRYPT_KEY must be set", domain.ErrConfig), 1},
		{"delivery", fmt.Errorf("%w: mail: dial failed", domain.ErrDelivery), 1},
		{"render", fmt.Errorf("%w: timeout", domain.ErrRender), 0},
		{"not found", fmt.Errorf("link x: %w", domain.ErrNotFound), 0},
		{"decryption", fmt.Errorf("link registry: %w", domain.ErrDecryption), 0},
		{"usage", errors.New(`unknown command "nope"`), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestWriteFlagLines(t *testing.T) {
	var buf bytes.Buffer
	f := domain.FeatureFlags{EmailEnabled: "off", CrawlerEnabled: "on", WechatEnabled: "off"}
	require.NoError(t, writeFlagLines(&buf, f))
	assert.Equal(t, "emailEnabled=false\ncrawlerEnabled=true\nwechatEnabled=false\n", buf.String())
}

func TestSetFlag(t *testing.T) {
	f, err := setFlag(domain.DefaultFlags(), "crawler", "off")
	require.NoError(t, err)
	assert.False(t, f.Crawler())
	assert.True(t, f.Email())

	_, err = setFlag(f, "crawler", "maybe")
	assert.Error(t, err)
	_, err = setFlag(f, "sms", "on")
	assert.Error(t, err)
}

// cliEnv points the CLI at a fresh data directory and returns the config dir.
func cliEnv(t *testing.T) string {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("LINKS_FILE", filepath.Join(dir, "links.txt"))
	t.Setenv("DATA_ENCRYPT_KEY", "cli-test-key")
	t.Setenv("STORAGE_BACKEND", "file")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("GITHUB_OUTPUT", "")
	return dir
}

func execute(t *testing.T, configDir string, args ...string) (string, error) {
	t.Helper()
	linkName = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", configDir))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLinksCommands(t *testing.T) {
	dir := cliEnv(t)

	out, err := execute(t, dir, "links", "add", "https://example.com/u/1", "--name", "Alice")
	require.NoError(t, err)
	assert.Contains(t, out, "added https://example.com/u/1")

	_, err = execute(t, dir, "links", "add", "https://example.com/u/2")
	require.NoError(t, err)

	_, err = execute(t, dir, "links", "add", "https://example.com/u/1")
	assert.Error(t, err, "duplicate url")

	_, err = execute(t, dir, "links", "set-name", "https://example.com/u/2", "Bob")
	require.NoError(t, err)

	out, err = execute(t, dir, "links", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "https://example.com/u/2")

	_, err = execute(t, dir, "links", "remove", "https://example.com/u/1")
	require.NoError(t, err)

	_, err = execute(t, dir, "links", "remove", "https://example.com/u/1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	out, err = execute(t, dir, "links", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Alice")
}

func TestLinksAdd_RequiresKey(t *testing.T) {
	dir := cliEnv(t)
	t.Setenv("DATA_ENCRYPT_KEY", "")

	_, err := execute(t, dir, "links", "add", "https://example.com/u/1")
	assert.ErrorIs(t, err, domain.ErrConfig)
	assert.Equal(t, 1, exitCode(err))
}

func TestFlagsCommand_GithubOutput(t *testing.T) {
	dir := cliEnv(t)

	_, err := execute(t, dir, "flags", "set", "email", "off")
	require.NoError(t, err)

	outFile := filepath.Join(dir, "github_output")
	require.NoError(t, os.WriteFile(outFile, []byte("earlier=1\n"), 0o644))
	t.Setenv("GITHUB_OUTPUT", outFile)

	out, err := execute(t, dir, "flags")
	require.NoError(t, err)
	assert.NotContains(t, out, "emailEnabled", "lines go to the output file")

	b, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "earlier=1\nemailEnabled=false\ncrawlerEnabled=true\nwechatEnabled=true\n", string(b))
}

func TestFlagsCommand_Stdout(t *testing.T) {
	dir := cliEnv(t)

	out, err := execute(t, dir, "flags")
	require.NoError(t, err)
	assert.Contains(t, out, "emailEnabled=true\ncrawlerEnabled=true\nwechatEnabled=true\n")
}

func TestDigest_NotConfigured(t *testing.T) {
	dir := cliEnv(t)
	t.Setenv("QQ_MAIL", "")
	t.Setenv("QQ_AUTH_CODE", "")

	out, err := execute(t, dir, "digest")
	require.NoError(t, err)
	assert.Contains(t, out, "mail: skipped (not configured)")
}

func TestFlagsSet_WrongKeyKeepsBlob(t *testing.T) {
	dir := cliEnv(t)

	_, err := execute(t, dir, "flags", "set", "email", "off")
	require.NoError(t, err)

	t.Setenv("DATA_ENCRYPT_KEY", "some-other-key")
	_, err = execute(t, dir, "flags", "set", "crawler", "off")
	assert.ErrorIs(t, err, domain.ErrDecryption)

	t.Setenv("DATA_ENCRYPT_KEY", "cli-test-key")
	out, err := execute(t, dir, "flags")
	require.NoError(t, err)
	assert.Contains(t, out, "emailEnabled=false\ncrawlerEnabled=true\n")
}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestDigestManual_MailFailureStillPushes(t *testing.T) {
	dir := cliEnv(t)

	var hits atomic.Int32
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "ok")
	}))
	defer worker.Close()

	t.Setenv("QQ_MAIL", "me@qq.com")
	t.Setenv("QQ_AUTH_CODE", "secret")
	t.Setenv("SMTP_HOST", "127.0.0.1")
	t.Setenv("SMTP_PORT", strconv.Itoa(closedPort(t)))
	t.Setenv("WX_WORKER_URL", worker.URL)
	t.Setenv("WX_TOKEN", "tok")

	log := logrus.New()
	log.SetOutput(io.Discard)
	repo, err := storage.NewFileRepository(filepath.Join(dir, "data"), filepath.Join(dir, "links.txt"), log)
	require.NoError(t, err)
	c, err := secret.New("cli-test-key")
	require.NoError(t, err)
	require.NoError(t, snapshot.NewStore(repo, c, log).WriteLatest(context.Background(), []domain.EntitySnapshot{{
		Nickname:    "Alice",
		HomepageURL: "https://example.com/u/1",
		Posts:       []domain.Post{{Title: "hello", Time: "12-05", IsToday: true}},
	}}))

	out, err := execute(t, dir, "digest-manual")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDelivery)
	assert.Equal(t, 1, exitCode(err))

	assert.Equal(t, int32(1), hits.Load(), "wechat push runs even though mail failed")
	assert.Contains(t, out, "wechat: sent (1 posts)")
}

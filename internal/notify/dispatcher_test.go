package notify

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedwatch/internal/domain"
)

type fakeFlags struct{ f domain.FeatureFlags }

func (f fakeFlags) Get(context.Context) domain.FeatureFlags { return f.f }

type fakeSnapshots struct {
	latest    []domain.EntitySnapshot
	today     map[string][]domain.EntitySnapshot
	err       error
	readDates []string
}

func (f *fakeSnapshots) ReadLatest(context.Context) ([]domain.EntitySnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.latest == nil {
		return nil, domain.ErrNotFound
	}
	return f.latest, nil
}

func (f *fakeSnapshots) ReadToday(_ context.Context, date string) ([]domain.EntitySnapshot, error) {
	f.readDates = append(f.readDates, date)
	if f.err != nil {
		return nil, f.err
	}
	snaps, ok := f.today[date]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return snaps, nil
}

type fakeSink struct {
	invalid error
	sendErr error
	sent    []Message
}

func (f *fakeSink) Name() string    { return "fake" }
func (f *fakeSink) Validate() error { return f.invalid }
func (f *fakeSink) Send(_ context.Context, msg Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func posts(n int) []domain.Post {
	out := make([]domain.Post, n)
	for i := range out {
		out[i] = domain.Post{Title: "p", Time: "12-05", IsToday: true, Images: []string{}}
	}
	return out
}

func newTestDispatcher(t *testing.T, flags domain.FeatureFlags, snaps *fakeSnapshots) *Dispatcher {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	d := NewDispatcher(fakeFlags{flags}, snaps, time.UTC, "https://site.example", log)
	d.now = func() time.Time { return time.Date(2025, 12, 5, 8, 0, 0, 0, time.UTC) }
	return d
}

func TestDispatcher_Gates(t *testing.T) {
	today := map[string][]domain.EntitySnapshot{
		"2025-12-05": {{Nickname: "A", Posts: posts(2)}, {Nickname: "B", Posts: posts(1)}},
	}
	emailOff := domain.DefaultFlags()
	emailOff.EmailEnabled = domain.FlagOff

	tests := []struct {
		name   string
		flags  domain.FeatureFlags
		snaps  *fakeSnapshots
		sink   *fakeSink
		req    func(Sink) Request
		reason string
		sent   int
	}{
		{
			name:   "flag off",
			flags:  emailOff,
			snaps:  &fakeSnapshots{today: today},
			sink:   &fakeSink{},
			req:    ScheduledDigest,
			reason: "disabled",
		},
		{
			name:   "flag checked before configuration",
			flags:  emailOff,
			snaps:  &fakeSnapshots{today: today},
			sink:   &fakeSink{invalid: errors.New("missing token")},
			req:    ScheduledDigest,
			reason: "disabled",
		},
		{
			name:   "not configured",
			flags:  domain.DefaultFlags(),
			snaps:  &fakeSnapshots{today: today},
			sink:   &fakeSink{invalid: errors.New("missing token")},
			req:    ScheduledDigest,
			reason: "not configured",
		},
		{
			name:   "no snapshot for today",
			flags:  domain.DefaultFlags(),
			snaps:  &fakeSnapshots{},
			sink:   &fakeSink{},
			req:    ScheduledDigest,
			reason: "no updates",
		},
		{
			name:   "snapshot without posts",
			flags:  domain.DefaultFlags(),
			snaps:  &fakeSnapshots{today: map[string][]domain.EntitySnapshot{"2025-12-05": {{Nickname: "A", Posts: []domain.Post{}}}}},
			sink:   &fakeSink{},
			req:    Push,
			reason: "no updates",
		},
		{
			name:  "manual digest ignores email flag",
			flags: emailOff,
			snaps: &fakeSnapshots{latest: []domain.EntitySnapshot{{Nickname: "A", Posts: posts(3)}}},
			sink:  &fakeSink{},
			req:   ManualDigest,
			sent:  1,
		},
		{
			name:  "scheduled digest sends",
			flags: domain.DefaultFlags(),
			snaps: &fakeSnapshots{today: today},
			sink:  &fakeSink{},
			req:   ScheduledDigest,
			sent:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, tt.flags, tt.snaps)

			out, err := d.Dispatch(context.Background(), tt.req(tt.sink))
			require.NoError(t, err)
			assert.Equal(t, tt.sent == 1, out.Sent)
			assert.Equal(t, tt.reason, out.Reason)
			assert.Len(t, tt.sink.sent, tt.sent)
		})
	}
}

func TestDispatcher_CountsPosts(t *testing.T) {
	snaps := &fakeSnapshots{today: map[string][]domain.EntitySnapshot{
		"2025-12-05": {{Nickname: "A", Posts: posts(2)}, {Nickname: "B", Posts: posts(1)}},
	}}
	d := newTestDispatcher(t, domain.DefaultFlags(), snaps)
	sink := &fakeSink{}

	out, err := d.Dispatch(context.Background(), Push(sink))
	require.NoError(t, err)
	assert.Equal(t, 3, out.Posts)
	require.Len(t, sink.sent, 1)
	assert.Contains(t, sink.sent[0].Content, "今日有 3 条新内容")
	assert.Equal(t, "https://site.example", sink.sent[0].Link)
	assert.Equal(t, []string{"2025-12-05"}, snaps.readDates)
}

func TestDispatcher_SendFailure(t *testing.T) {
	snaps := &fakeSnapshots{latest: []domain.EntitySnapshot{{Posts: posts(1)}}}
	d := newTestDispatcher(t, domain.DefaultFlags(), snaps)

	_, err := d.Dispatch(context.Background(), ManualDigest(&fakeSink{sendErr: errors.New("smtp down")}))
	assert.ErrorIs(t, err, domain.ErrDelivery)
}

func TestDispatcher_ReadFailure(t *testing.T) {
	snaps := &fakeSnapshots{err: domain.ErrDecryption}
	d := newTestDispatcher(t, domain.DefaultFlags(), snaps)

	_, err := d.Dispatch(context.Background(), ScheduledDigest(&fakeSink{}))
	assert.ErrorIs(t, err, domain.ErrDecryption)
	assert.NotErrorIs(t, err, domain.ErrDelivery)
}

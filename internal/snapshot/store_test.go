package snapshot

import (
	"context"
	"io"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedwatch/internal/domain"
	"feedwatch/internal/secret"
	"feedwatch/internal/storage"
)

func setup(t *testing.T) (*Store, storage.Repository) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	repo, err := storage.NewFileRepository(t.TempDir(), "", log)
	require.NoError(t, err)
	c, err := secret.New("k")
	require.NoError(t, err)
	return NewStore(repo, c, log), repo
}

func post(title string, today bool) domain.Post {
	return domain.Post{Title: title, Time: "12-05", IsToday: today, Images: []string{}}
}

func TestDateKey(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	// 20:30 UTC on Dec 4 is already Dec 5 in Shanghai.
	now := time.Date(2025, 12, 4, 20, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-12-05", DateKey(now, shanghai))
	assert.Equal(t, "2025-12-04", DateKey(now, nil))
}

func TestStore_WriteLatestOverwrites(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	_, err := s.ReadLatest(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first := []domain.EntitySnapshot{
		{Nickname: "A", HomepageURL: "https://example.com/a", Posts: []domain.Post{post("a1", true)}},
		{Nickname: "B", HomepageURL: "https://example.com/b", Posts: []domain.Post{post("b1", false)}},
	}
	require.NoError(t, s.WriteLatest(ctx, first))

	second := []domain.EntitySnapshot{
		{Nickname: "C", HomepageURL: "https://example.com/c", Posts: []domain.Post{
			post("c1", false), post("c2", false), post("c3", false), post("c4", false),
		}},
	}
	require.NoError(t, s.WriteLatest(ctx, second))

	got, err := s.ReadLatest(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1, "no merge with the previous rolling view")
	assert.Equal(t, "C", got[0].Nickname)
	assert.Len(t, got[0].Posts, domain.MaxPostsPerEntity)
}

func TestStore_WriteToday(t *testing.T) {
	ctx := context.Background()
	date := "2025-12-05"

	t.Run("no recent posts deletes existing blob", func(t *testing.T) {
		s, repo := setup(t)
		require.NoError(t, repo.Put(ctx, storage.DailyBlob(date), "stale"))

		written, err := s.WriteToday(ctx, []domain.EntitySnapshot{
			{Nickname: "A", Posts: []domain.Post{post("old", false)}},
			{Nickname: "B", Posts: []domain.Post{}},
		}, date)
		require.NoError(t, err)
		assert.False(t, written)

		_, err = repo.Get(ctx, storage.DailyBlob(date))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("no recent posts and no blob creates nothing", func(t *testing.T) {
		s, repo := setup(t)

		written, err := s.WriteToday(ctx, nil, date)
		require.NoError(t, err)
		assert.False(t, written)

		_, err = repo.Get(ctx, storage.DailyBlob(date))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("keeps only recent posts of recent entities", func(t *testing.T) {
		s, _ := setup(t)

		written, err := s.WriteToday(ctx, []domain.EntitySnapshot{
			{Nickname: "A", HomepageURL: "https://example.com/a", Posts: []domain.Post{
				post("a-new", true), post("a-old", false), post("a-new2", true),
			}},
			{Nickname: "B", HomepageURL: "https://example.com/b", Posts: []domain.Post{post("b-old", false)}},
		}, date)
		require.NoError(t, err)
		assert.True(t, written)

		got, err := s.ReadToday(ctx, date)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "A", got[0].Nickname)
		require.Len(t, got[0].Posts, 2)
		assert.Equal(t, "a-new", got[0].Posts[0].Title)
		assert.Equal(t, "a-new2", got[0].Posts[1].Title)
	})
}

func TestStore_WithoutKey(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	repo, err := storage.NewFileRepository(t.TempDir(), "", log)
	require.NoError(t, err)
	s := NewStore(repo, nil, log)

	assert.ErrorIs(t, s.WriteLatest(context.Background(), nil), domain.ErrConfig)
	_, err = s.WriteToday(context.Background(), nil, "2025-12-05")
	assert.ErrorIs(t, err, domain.ErrConfig)
}

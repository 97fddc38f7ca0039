package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinetaste/authkit/internal/model"
)

func testSession() *model.Session {
	return &model.Session{
		User: model.User{
			ID:    "42",
			Name:  "Ada",
			Email: "ada@x.com",
		},
		ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Token:     "abc123",
	}
}

func backends(t *testing.T) map[string]Store {
	t.Helper()

	dir := t.TempDir()

	sqlite, err := NewSQLite(filepath.Join(dir, "kv", "authkit.db"))
	require.NoError(t, err)

	file, err := NewFile(filepath.Join(dir, "file", "authkit.json"))
	require.NoError(t, err)

	return map[string]Store{
		"sqlite": sqlite,
		"file":   file,
	}
}

func Test_sessionRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			assert := assert.New(t)

			_, err := s.Session(ctx)
			assert.ErrorIs(err, ErrNotFound)

			require.NoError(s.PutSession(ctx, testSession()))

			got, err := s.Session(ctx)
			require.NoError(err)
			assert.Equal("42", got.User.ID)
			assert.Equal("Ada", got.User.Name)
			assert.True(got.ExpiresAt.Equal(testSession().ExpiresAt))
			assert.Equal("abc123", got.Token)

			require.NoError(s.DeleteSession(ctx))
			_, err = s.Session(ctx)
			assert.ErrorIs(err, ErrNotFound)
		})
	}
}

func Test_tokenRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			assert := assert.New(t)

			_, err := s.Token(ctx)
			assert.ErrorIs(err, ErrNotFound)

			require.NoError(s.PutToken(ctx, "abc123"))

			token, err := s.Token(ctx)
			require.NoError(err)
			assert.Equal("abc123", token)
		})
	}
}

func Test_clearRemovesBothEntries(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			assert := assert.New(t)

			require.NoError(s.PutSession(ctx, testSession()))
			require.NoError(s.PutToken(ctx, "abc123"))

			require.NoError(s.Clear(ctx))

			_, err := s.Session(ctx)
			assert.ErrorIs(err, ErrNotFound)
			_, err = s.Token(ctx)
			assert.ErrorIs(err, ErrNotFound)
		})
	}
}

func Test_fileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "authkit.json")

	first, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, first.PutSession(ctx, testSession()))
	require.NoError(t, first.PutToken(ctx, "abc123"))

	second, err := NewFile(path)
	require.NoError(t, err)

	got, err := second.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", got.User.ID)

	token, err := second.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func Test_sqliteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "authkit.db")

	first, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.PutToken(ctx, "abc123"))

	second, err := NewSQLite(path)
	require.NoError(t, err)

	token, err := second.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

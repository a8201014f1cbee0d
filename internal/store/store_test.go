package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "db.json")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestOpen_Missing(t *testing.T) {
	s, path := openTemp(t)
	assert.Empty(t, s.List())
	assert.Equal(t, path, s.Path())
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "open must not create the file")
}

func TestOpen_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestEnsureRecord_InsertIfAbsent(t *testing.T) {
	s, _ := openTemp(t)

	r, created, err := s.EnsureRecord("clip", "processed/clip.txt")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusPending, r.Status)
	assert.False(t, r.Processed)

	require.NoError(t, s.MarkProcessed("clip"))

	// A re-upload keeps the one record and its info path but starts over.
	again, created, err := s.EnsureRecord("clip", "elsewhere.txt")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, StatusPending, again.Status)
	assert.False(t, again.Processed)
	assert.Equal(t, "processed/clip.txt", again.InfoPath)
	assert.Len(t, s.List(), 1)
}

func TestEnsureRecord_ResetsFailed(t *testing.T) {
	s, path := openTemp(t)

	_, _, err := s.EnsureRecord("clip", "clip.txt")
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed("clip", errors.New("boom")))

	_, created, err := s.EnsureRecord("clip", "clip.txt")
	require.NoError(t, err)
	assert.False(t, created)

	reopened, err := Open(path)
	require.NoError(t, err)
	r, err := reopened.Find("clip")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status)
	assert.False(t, r.Processed)
	assert.Empty(t, r.Error)
}

func TestEnsureRecord_Concurrent(t *testing.T) {
	s, _ := openTemp(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := s.EnsureRecord("same", "same.txt")
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	assert.Len(t, s.List(), 1)
}

func TestMarkFailedThenProcessed(t *testing.T) {
	s, _ := openTemp(t)
	_, _, err := s.EnsureRecord("clip", "clip.txt")
	require.NoError(t, err)

	require.NoError(t, s.MarkFailed("clip", errors.New("codec missing")))
	r, err := s.Find("clip")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "codec missing", r.Error)
	assert.False(t, r.Processed)

	require.NoError(t, s.MarkProcessed("clip"))
	r, err = s.Find("clip")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, r.Status)
	assert.True(t, r.Processed)
	assert.Empty(t, r.Error)
}

func TestUnknownName(t *testing.T) {
	s, _ := openTemp(t)

	_, err := s.Find("ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.MarkProcessed("ghost"), ErrNotFound))
	assert.True(t, errors.Is(s.MarkFailed("ghost", nil), ErrNotFound))
	assert.Empty(t, s.List())
}

func TestPersistence(t *testing.T) {
	s, path := openTemp(t)
	for _, name := range []string{"b", "a", "c"} {
		_, _, err := s.EnsureRecord(name, name+".txt")
		require.NoError(t, err)
	}
	require.NoError(t, s.MarkProcessed("a"))
	require.NoError(t, s.MarkFailed("c", errors.New("boom")))

	reopened, err := Open(path)
	require.NoError(t, err)

	list := reopened.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].Name, list[1].Name, list[2].Name})
	assert.Equal(t, StatusProcessed, list[0].Status)
	assert.Equal(t, StatusPending, list[1].Status)
	assert.Equal(t, StatusFailed, list[2].Status)
	assert.Equal(t, "boom", list[2].Error)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

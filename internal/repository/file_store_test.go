package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment-bot/internal/domain"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "appointments.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	return s, path
}

func TestNewFileStore_Validates(t *testing.T) {
	_, err := NewFileStore(" ")
	require.Error(t, err)
}

func TestFileStore_LoadAll_MissingFile(t *testing.T) {
	s, _ := newTestFileStore(t)
	all, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestFileStore_AppendSequentialIDs(t *testing.T) {
	s, path := newTestFileStore(t)
	for want := 1; want <= 3; want++ {
		id, err := s.Append(context.Background(), testAppointment())
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("%d", want), id)
	}

	all, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "1", all[0].ID)
	require.Equal(t, "3", all[2].ID)
	require.Equal(t, []string{"John Doe", "Jane Smith"}, all[0].Team)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Equal(t, "Acme Co", onDisk["2"]["client_name"])
	require.Equal(t, "2025-04-01 10:00", onDisk["2"]["start_datetime"])
	require.NotContains(t, onDisk["2"], "ID")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_ReadsExistingFile(t *testing.T) {
	s, path := newTestFileStore(t)
	existing := `{
    "1": {"client_name": "Old", "description": "", "start_datetime": "", "end_datetime": "", "location": "", "team": ["Mike Lee"]}
}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o600))

	id, err := s.Append(context.Background(), testAppointment())
	require.NoError(t, err)
	require.Equal(t, "2", id)

	all, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Old", all[0].ClientName)
	require.Equal(t, []string{"Mike Lee"}, all[0].Team)
}

func TestFileStore_CorruptFile(t *testing.T) {
	s, path := newTestFileStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	_, err := s.Append(context.Background(), testAppointment())
	require.ErrorContains(t, err, "decode appointments")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{broken", string(raw))
}

func TestFileStore_WriteFailure(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "missing-dir", "appointments.json"))
	require.NoError(t, err)
	_, err = s.Append(context.Background(), testAppointment())
	require.Error(t, err)
}

func TestFileStore_CanceledContext(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Append(ctx, testAppointment())
	require.ErrorIs(t, err, context.Canceled)
}

func TestFileStore_ConcurrentAppends(t *testing.T) {
	s, _ := newTestFileStore(t)
	const k = 25

	var wg sync.WaitGroup
	ids := make(chan string, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.Append(context.Background(), domain.Appointment{ClientName: fmt.Sprintf("client-%d", i)})
			assert.NoError(t, err)
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	for i := 1; i <= k; i++ {
		require.True(t, seen[fmt.Sprintf("%d", i)])
	}

	all, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, k)
}

package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	dir := t.TempDir()

	sq, err := Open(BackendSQLite, dir)
	require.NoError(t, err)
	fs, err := Open(BackendDir, dir)
	require.NoError(t, err)
	mem, err := Open(BackendMemory, dir)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = sq.Close()
		_ = fs.Close()
		_ = mem.Close()
	})
	return map[string]Storage{"sqlite": sq, "dir": fs, "memory": mem}
}

func TestStorage_Contract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, s.Set(ctx, "items", []byte(`[1]`)))
			require.NoError(t, s.Set(ctx, "items", []byte(`[1,2]`)))
			v, ok, err := s.Get(ctx, "items")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, `[1,2]`, string(v))

			require.NoError(t, s.Set(ctx, "sync/odd key", []byte{}))
			v, ok, err = s.Get(ctx, "sync/odd key")
			require.NoError(t, err)
			require.True(t, ok)
			require.Empty(t, v)

			require.NoError(t, s.Remove(ctx, "items"))
			require.NoError(t, s.Remove(ctx, "items"))
			_, ok, err = s.Get(ctx, "items")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(BackendSQLite, dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "schema_version", []byte("3")))
	require.NoError(t, s.Close())

	s, err = Open(BackendSQLite, dir)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get(ctx, "schema_version")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "3", string(v))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("etcd", t.TempDir())
	require.Error(t, err)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in))
	in[0] = 'x'
	out, _, _ := m.Get(ctx, "k")
	require.Equal(t, "abc", string(out))
	out[0] = 'y'
	again, _, _ := m.Get(ctx, "k")
	require.Equal(t, "abc", string(again))
}

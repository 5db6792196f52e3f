package prefixes

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"prefixhider/internal/config"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"blank lines", "\n  \n\t\n", []string{}},
		{"trims", "  team \nproj\t", []string{"team", "proj"}},
		{"dedupes keeping first", "b\na\nb\na", []string{"b", "a"}},
		{"crlf", "team\r\nproj\r\n", []string{"team", "proj"}},
		{"nfc", "caf\u00e9\ncafe\u0301", []string{"caf\u00e9"}},
		{"keeps inner spaces", "my team\n", []string{"my team"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseInput(tt.in)); diff != "" {
				t.Errorf("ParseInput(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestFormatInputRoundTrip(t *testing.T) {
	list := []string{"team", "proj"}
	assert.Equal(t, "team\nproj", FormatInput(list))
	assert.Equal(t, list, ParseInput(FormatInput(list)))
}

func TestStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(filepath.Join(t.TempDir(), "sub", "prefixes.db"))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "fresh store is empty")

	require.NoError(t, s.Save(ctx, []string{"team", "proj", "x"}))
	got, err = s.Prefixes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"team", "proj", "x"}, got)

	require.NoError(t, s.Save(ctx, []string{"only"}))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, got, "save replaces wholesale")

	require.NoError(t, s.Save(ctx, nil))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefixes.db")

	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, []string{"b", "a"}))
	require.NoError(t, s.Close())

	s, err = NewStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, got, "order is preserved")
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()
	f := NewFileSource(filepath.Join(t.TempDir(), "prefixes.yaml"))

	got, err := f.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "missing file is empty")

	require.NoError(t, f.Save(ctx, []string{"team", "proj"}))
	got, err = f.Prefixes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"team", "proj"}, got)

	require.NoError(t, os.WriteFile(f.Path(), []byte("prefixes: [oops"), 0644))
	_, err = f.Load(ctx)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(config.StoreConfig{Source: config.SourceSQLite, DatabasePath: filepath.Join(dir, "p.db")})
	require.NoError(t, err)
	_, ok := b.(*Store)
	assert.True(t, ok)
	require.NoError(t, b.Close())

	b, err = Open(config.StoreConfig{Source: config.SourceFile, FilePath: filepath.Join(dir, "p.yaml")})
	require.NoError(t, err)
	_, ok = b.(*FileSource)
	assert.True(t, ok)

	_, err = Open(config.StoreConfig{Source: "etcd"})
	assert.Error(t, err)
}

func TestFileWatcherReportsEdits(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "prefixes.yaml")
	src := NewFileSource(path)

	changed := make(chan struct{}, 8)
	fw, err := NewFileWatcher(path, 20*time.Millisecond, func() { changed <- struct{}{} })
	require.NoError(t, err)
	require.NoError(t, fw.Start(ctx))
	defer fw.Stop()

	require.NoError(t, src.Save(ctx, []string{"team"}))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestFileWatcherStopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	fw, err := NewFileWatcher(filepath.Join(t.TempDir(), "p.yaml"), 0, func() {})
	require.NoError(t, err)
	fw.Stop()
}

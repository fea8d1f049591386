package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNameSafe(t *testing.T) {
	tests := []struct{ in, want string }{
		{"One Piece", "One_Piece"},
		{"Café au lait", "Cafe_au_lait"},
		{"Chapter 1: The Start!", "Chapter_1_The_Start"},
		{"  spaced   out  ", "spaced_out"},
		{"Ёжик в тумане", "Ezhik_v_tumane"},
		{"already_safe-name", "already_safe-name"},
		{"Vol.2 / Ch.10.5", "Vol_2_Ch_10_5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileNameSafe(tt.in), tt.in)
	}
}

func TestNextAvailable(t *testing.T) {
	dir := t.TempDir()

	target := filepath.Join(dir, "manga.cbz")
	assert.Equal(t, target, NextAvailable(target))

	require.NoError(t, os.WriteFile(target, nil, 0o644))
	assert.Equal(t, filepath.Join(dir, "manga_1.cbz"), NextAvailable(target))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "manga_1.cbz"), nil, 0o644))
	assert.Equal(t, filepath.Join(dir, "manga_2.cbz"), NextAvailable(target))

	folder := filepath.Join(dir, "Title")
	require.NoError(t, os.Mkdir(folder, 0o755))
	assert.Equal(t, filepath.Join(dir, "Title_1"), NextAvailable(folder))
}

func TestExtensionFromURL(t *testing.T) {
	assert.Equal(t, "png", ExtensionFromURL("https://cdn.example.com/data/abc/1-hash.png"))
	assert.Equal(t, "jpg", ExtensionFromURL("https://cdn.example.com/x.JPG?token=1"))
	assert.Equal(t, "webp", ExtensionFromURL("/covers/id/file.webp"))
	assert.Equal(t, "", ExtensionFromURL("https://cdn.example.com/page"))
	assert.Equal(t, "", ExtensionFromURL("https://cdn.example.com/archive.backup"))
	assert.Equal(t, "", ExtensionFromURL("https://cdn.example.com/a.b"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "Ёж", Truncate("Ёжик", 2))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, filepath.Join(home, "manga"), ExpandHome("~/manga"))
	assert.Equal(t, "/tmp/manga", ExpandHome("/tmp/manga"))
	assert.Equal(t, "~user/manga", ExpandHome("~user/manga"))
}

package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mangas-dl/pkg/services"
)

func TestDownloadModelUpdate(t *testing.T) {
	m := newDownloadModel("One Piece")

	next, cmd := m.Update(progressMsg{Status: services.StatusDownloading, ChapterName: "Romance Dawn", Chapter: 1, Chapters: 2, Done: 1, Total: 4})
	assert.Nil(t, cmd)
	m = next.(downloadModel)
	assert.False(t, m.done)
	assert.Contains(t, m.View(), "One Piece")
	assert.Contains(t, m.View(), "Romance Dawn")

	next, _ = m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	m = next.(downloadModel)

	next, cmd = m.Update(progressMsg{Status: services.StatusComplete, Chapters: 2, Done: 4, Total: 4})
	m = next.(downloadModel)
	assert.True(t, m.done)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestDownloadModelError(t *testing.T) {
	m := newDownloadModel("One Piece")

	next, cmd := m.Update(progressMsg{Status: services.StatusError, Error: errors.New("boom")})
	m = next.(downloadModel)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Error: boom")
}

func TestAppRun(t *testing.T) {
	var out bytes.Buffer
	a := NewApp(context.Background(), "One Piece", &out)
	a.Start()

	a.Send(services.DownloadProgress{Status: services.StatusPreparing, Chapters: 1})
	a.Send(services.DownloadProgress{Status: services.StatusComplete, Chapters: 1, Done: 3, Total: 3})
	require.NoError(t, a.Wait())
	assert.Contains(t, out.String(), "One Piece")
}

func TestAppCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := NewApp(ctx, "One Piece", &bytes.Buffer{})
	a.Start()
	cancel()
	assert.NoError(t, a.Wait())
}

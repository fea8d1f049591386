package components

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kerbaras/mangas-dl/pkg/services"
)

func TestNewProgressTracker(t *testing.T) {
	tracker := NewProgressTracker(80)

	assert.Equal(t, 80, tracker.width)
	assert.Equal(t, 76, tracker.bar.Width)
	assert.False(t, tracker.HasActive())
	assert.Empty(t, tracker.View())

	tracker.SetWidth(5)
	assert.Equal(t, minBarWidth, tracker.bar.Width)
}

func TestProgressTrackerUpdate(t *testing.T) {
	tracker := NewProgressTracker(80)

	tracker.Update(services.DownloadProgress{Status: services.StatusPreparing, Chapters: 3})
	assert.True(t, tracker.HasActive())
	assert.Zero(t, tracker.Percent())

	tracker.Update(services.DownloadProgress{
		ChapterID:   "ch-1",
		ChapterName: "Romance Dawn",
		Chapter:     1,
		Chapters:    3,
		Done:        5,
		Total:       20,
		Status:      services.StatusDownloading,
	})
	assert.InDelta(t, 0.25, tracker.Percent(), 1e-9)

	view := tracker.View()
	assert.Contains(t, view, "Chapter 1/3:")
	assert.Contains(t, view, "Romance Dawn")
	assert.Contains(t, view, "downloading (5/20 pages)")

	// final updates carry no chapter, the last one is kept
	tracker.Update(services.DownloadProgress{Chapters: 3, Done: 20, Total: 20, Status: services.StatusComplete})
	assert.False(t, tracker.HasActive())
	assert.Equal(t, 1.0, tracker.Percent())
	assert.Contains(t, tracker.View(), "Romance Dawn")
}

func TestProgressTrackerError(t *testing.T) {
	tracker := NewProgressTracker(40)
	tracker.Update(services.DownloadProgress{Status: services.StatusError, Error: errors.New("boom")})

	assert.False(t, tracker.HasActive())
	assert.True(t, strings.Contains(tracker.View(), "Error: boom"))
}

func TestIsFinal(t *testing.T) {
	for _, status := range []string{services.StatusComplete, services.StatusError, services.StatusCancelled} {
		assert.True(t, IsFinal(status), status)
	}
	for _, status := range []string{services.StatusPreparing, services.StatusDownloading, services.StatusFinalizing} {
		assert.False(t, IsFinal(status), status)
	}
}

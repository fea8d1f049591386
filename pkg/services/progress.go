package services

import "sync"

// Download statuses published on the progress channel.
const (
	StatusPreparing   = "preparing"
	StatusDownloading = "downloading"
	StatusFinalizing  = "finalizing"
	StatusComplete    = "complete"
	StatusError       = "error"
	StatusCancelled   = "cancelled"
)

// DownloadProgress represents the progress of a download session. Done and
// Total count pages of the whole session; Total is an estimate until the last
// chapter's page list is known.
type DownloadProgress struct {
	MangaID     string
	ChapterID   string
	ChapterName string
	Chapter     int
	Chapters    int
	Done        int
	Total       int
	Status      string
	Error       error
}

// pageCounter estimates the number of pages of a session from the chapters
// seen so far: known counts plus the last count for every chapter still ahead.
type pageCounter struct {
	mu       sync.Mutex
	chapters int
	counts   []int
	sum      int
	done     int
}

func newPageCounter(chapters int) *pageCounter {
	return &pageCounter{chapters: chapters}
}

func (c *pageCounter) addChapter(pages int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = append(c.counts, pages)
	c.sum += pages
}

func (c *pageCounter) step() (done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done++
	return c.done, c.totalLocked()
}

func (c *pageCounter) snapshot() (done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done, c.totalLocked()
}

// started is the number of chapters whose page list is known.
func (c *pageCounter) started() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts)
}

func (c *pageCounter) totalLocked() int {
	if len(c.counts) == 0 {
		return 0
	}
	remaining := c.chapters - len(c.counts)
	if remaining < 0 {
		remaining = 0
	}
	return c.sum + remaining*c.counts[len(c.counts)-1]
}

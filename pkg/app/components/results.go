package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kerbaras/mangas-dl/pkg/app/styles"
	"github.com/kerbaras/mangas-dl/pkg/data"
	"github.com/kerbaras/mangas-dl/pkg/utils"
)

const titleMaxLen = 48

// SearchResults renders search hits with the link to pass to the download
// command.
func SearchResults(mangas []*data.Manga) string {
	if len(mangas) == 0 {
		return styles.MutedStyle.Render("No results")
	}

	t := table.New().
		Border(styles.RoundedBorder).
		BorderStyle(styles.TableBorderStyle).
		Headers("#", "Title", "Authors", "State", "Link").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.TableHeaderStyle
			}
			return styles.TableCellStyle
		})

	for i, m := range mangas {
		link := m.PublicURL
		if link == "" {
			link = m.URL
		}
		t.Row(
			strconv.Itoa(i+1),
			utils.Truncate(m.Title, titleMaxLen),
			strings.Join(m.Authors, ", "),
			strings.ToLower(string(m.State)),
			link,
		)
	}
	return t.String()
}

// ChapterList renders the chapters recorded for one manga.
func ChapterList(chapters []*data.LibraryChapter) string {
	if len(chapters) == 0 {
		return styles.MutedStyle.Render("No chapters recorded")
	}

	t := table.New().
		Border(styles.RoundedBorder).
		BorderStyle(styles.TableBorderStyle).
		Headers("Vol.", "Ch.", "Name", "Branch", "Status").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.TableHeaderStyle
			case col == 4 && !chapters[row].Downloaded:
				return styles.TableCellStyle.Foreground(styles.Muted)
			}
			return styles.TableCellStyle
		})

	for _, ch := range chapters {
		volume := ""
		if ch.Volume > 0 {
			volume = strconv.Itoa(ch.Volume)
		}
		status := "missing"
		if ch.Downloaded {
			status = "downloaded"
		}
		t.Row(volume, data.FormatNumber(ch.Number), utils.Truncate(ch.Name, titleMaxLen), ch.Branch, status)
	}
	return t.String()
}

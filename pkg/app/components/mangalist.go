package components

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/kerbaras/mangas-dl/pkg/app/styles"
	"github.com/kerbaras/mangas-dl/pkg/data"
)

type MangaListItem struct {
	Entry           *data.LibraryEntry
	ChapterCount    int
	DownloadedCount int
}

// MangaList renders the download library as a table.
type MangaList struct {
	Items []MangaListItem
	Width int
}

func NewMangaList() *MangaList {
	return &MangaList{
		Items: []MangaListItem{},
		Width: 120,
	}
}

func (m *MangaList) SetItems(items []MangaListItem) {
	m.Items = items
}

func (m *MangaList) View() string {
	if len(m.Items) == 0 {
		return styles.MutedStyle.Render("No manga in library")
	}

	rows := make([]table.Row, len(m.Items))
	for i, item := range m.Items {
		rows[i] = table.Row{
			item.Entry.Title,
			item.Entry.Source,
			strconv.Itoa(item.DownloadedCount) + "/" + strconv.Itoa(item.ChapterCount),
			item.Entry.Format,
			item.Entry.UpdatedAt.Format("2006-01-02 15:04"),
			item.Entry.OutputPath,
		}
	}

	// the path column takes whatever width is left
	fixed := 30 + 10 + 9 + 6 + 16
	columns := []table.Column{
		{Title: "Title", Width: 30},
		{Title: "Source", Width: 10},
		{Title: "Chapters", Width: 9},
		{Title: "Format", Width: 6},
		{Title: "Updated", Width: 16},
		{Title: "Path", Width: max(m.Width-fixed-12, 20)},
	}

	s := table.DefaultStyles()
	s.Header = styles.TableHeaderStyle.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true)
	s.Cell = styles.TableCellStyle
	s.Selected = styles.TableCellStyle

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithStyles(s),
	)
	// the table height counts the header lines too
	t.SetHeight(len(rows) + lipgloss.Height(s.Header.Render(columns[0].Title)))
	return t.View()
}

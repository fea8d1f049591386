package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangas-dl/pkg/app/components"
	"github.com/kerbaras/mangas-dl/pkg/app/styles"
	"github.com/kerbaras/mangas-dl/pkg/data"
)

var listCmd = &cobra.Command{
	Use:   "list [manga-id]",
	Short: "List downloaded manga",
	Long: "Display every download recorded in the library, or the chapters of one manga.\n" +
		"--remove forgets a manga; downloaded files are kept.",
	Args: maxArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().String("remove", "", "remove the manga with this id from the library")
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	if s.library == nil {
		fmt.Fprintln(out, styles.MutedStyle.Render("The library is disabled, set libraryPath in the config to enable it."))
		return nil
	}

	if id := getString(cmd, "remove"); id != "" {
		entry, err := s.library.GetManga(id)
		if err != nil {
			return fmt.Errorf("failed to read library: %w", err)
		}
		if entry == nil {
			return fmt.Errorf("manga %q: %w", id, data.ErrNotFound)
		}
		if err := s.controller.Forget(id); err != nil {
			return fmt.Errorf("failed to remove %s: %w", id, err)
		}
		fmt.Fprintf(out, "Removed %s from the library\n", entry.Title)
		return nil
	}

	if len(args) == 1 {
		return printChapters(out, s, args[0])
	}

	entries, err := s.controller.Library()
	if err != nil {
		return fmt.Errorf("failed to read library: %w", err)
	}

	items := make([]components.MangaListItem, 0, len(entries))
	for _, entry := range entries {
		_, total, downloaded, err := s.library.GetMangaWithChapterCount(entry.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("manga", entry.ID).Msg("Failed to count chapters")
		}
		items = append(items, components.MangaListItem{
			Entry:           entry,
			ChapterCount:    total,
			DownloadedCount: downloaded,
		})
	}

	list := components.NewMangaList()
	list.SetItems(items)
	fmt.Fprintf(out, "\n%s\n\n", styles.TitleStyle.Render(fmt.Sprintf("Library (%d manga)", len(items))))
	fmt.Fprintln(out, list.View())
	if len(items) > 0 {
		fmt.Fprintln(out, styles.HelpStyle.Render("mangas-dl list <id> shows the chapters, --remove <id> forgets a manga"))
	}
	return nil
}

func printChapters(out io.Writer, s *session, id string) error {
	entry, err := s.library.GetManga(id)
	if err != nil {
		return fmt.Errorf("failed to read library: %w", err)
	}
	if entry == nil {
		return fmt.Errorf("manga %q: %w", id, data.ErrNotFound)
	}
	chapters, err := s.controller.LibraryChapters(id)
	if err != nil {
		return fmt.Errorf("failed to read library: %w", err)
	}

	fmt.Fprintf(out, "\n%s\n", styles.TitleStyle.Render(entry.Title))
	fmt.Fprintf(out, "%s\n\n", styles.SubtitleStyle.Render(entry.OutputPath))
	fmt.Fprintln(out, components.ChapterList(chapters))
	return nil
}

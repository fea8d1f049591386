package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangas-dl/pkg/app/components"
	"github.com/kerbaras/mangas-dl/pkg/app/styles"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search for manga",
	Long:  "Search every source that supports it and print the links to download",
	Args:  minArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, nil)
		if err != nil {
			return err
		}
		defer s.Close()

		query := strings.Join(args, " ")
		results, err := s.controller.Search(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(results) > 0 {
			fmt.Fprintln(out, styles.SubtitleStyle.Render(fmt.Sprintf("Found %d results for %q", len(results), query)))
		}
		fmt.Fprintln(out, components.SearchResults(results))
		return nil
	},
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangas-dl/pkg/integrations"
	"github.com/kerbaras/mangas-dl/pkg/utils"
)

var epubCmd = &cobra.Command{
	Use:   "epub <output>",
	Short: "Convert a finished download to EPUB",
	Long:  "Compile a downloaded directory or CBZ/ZIP archive into one EPUB, one section per chapter",
	Args: func(cmd *cobra.Command, args []string) error {
		if err := minArgs(1)(cmd, args); err != nil {
			return err
		}
		return maxArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, nil)
		if err != nil {
			return err
		}
		defer s.Close()

		dest, _ := cmd.Flags().GetString("output")
		var exporter integrations.Exporter = integrations.NewEPubBuilder(s.log)
		path, err := exporter.Export(utils.ExpandHome(args[0]), utils.ExpandHome(dest))
		if err != nil {
			return fmt.Errorf("EPUB generation failed: %w", err)
		}

		printField(cmd.OutOrStdout(), "EPUB created", path)
		return nil
	},
}

func init() {
	epubCmd.Flags().StringP("output", "o", "", "EPUB file to write (default: next to the download)")
}

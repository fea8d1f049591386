package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mangas-dl/pkg/app"
	"github.com/kerbaras/mangas-dl/pkg/app/styles"
	"github.com/kerbaras/mangas-dl/pkg/config"
	"github.com/kerbaras/mangas-dl/pkg/data"
	"github.com/kerbaras/mangas-dl/pkg/output"
	"github.com/kerbaras/mangas-dl/pkg/services"
	"github.com/kerbaras/mangas-dl/pkg/sources"
	"github.com/kerbaras/mangas-dl/pkg/utils"
)

var downloadCmd = &cobra.Command{
	Use:   "download [flags] <link>",
	Short: "Download a manga",
	Long: "Download the chapters of a manga. The destination may be a directory (a new entry named\n" +
		"after the title is created in it), an existing output to resume, or a new .cbz/.zip file.",
	Args: maxArgs(1),
	RunE: runDownload,
}

func addDownloadFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("destination", "d", "", "output directory or file (default: working directory)")
	f.String("dest", "", "alias of --destination")
	f.StringP("format", "f", "", "output format: auto, cbz, zip or dir")
	f.IntP("jobs", "j", services.DefaultParallelism, "pages downloaded at the same time (1-10)")
	f.Bool("throttle", false, "space requests to the source")
	f.StringP("chapters", "c", "", `chapters to download by position, e.g. "1-4,8,11" (default: all)`)
	f.StringP("branch", "b", "", "translation branch to download (default: best match for --lang)")
	f.StringP("lang", "l", "", `preferred translation language (default: "en")`)
	f.Bool("sources", false, "list supported sources and exit")
	f.MarkHidden("dest")
}

func runDownload(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if listSources, _ := cmd.Flags().GetBool("sources"); listSources {
		return printSources(cmd, out)
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: a manga link is required, see --help", data.ErrInvalidArgument)
	}

	rng, err := utils.ParseChaptersRange(getString(cmd, "chapters"))
	if err != nil {
		return err
	}

	s, err := newSession(cmd, func(cfg *config.Config) error {
		applyDownloadFlags(cmd, cfg)
		return nil
	})
	if err != nil {
		return err
	}
	defer s.Close()

	format, err := output.ParseFormat(s.cfg.Format)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	provider, manga, err := s.controller.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	printField(out, "Source", provider.Title())
	printField(out, "Title", manga.Title)
	printField(out, "Total chapters", fmt.Sprint(len(manga.Chapters)))

	branches := data.GroupBranches(manga.Chapters, s.cfg.Language)
	chapters, ok := data.SelectBranch(manga.Chapters, s.cfg.Branch, s.cfg.Language)
	if !ok {
		return fmt.Errorf("branch %q: %w", s.cfg.Branch, data.ErrNotFound)
	}
	if len(branches) > 1 {
		name := s.cfg.Branch
		if name == "" {
			name = branches[0].DisplayName()
		}
		printField(out, "Branch", fmt.Sprintf("%s (%d chapters)", name, len(chapters)))
	}
	if !rng.IsAll() {
		printField(out, "Chapters", fmt.Sprintf("%s (%d selected)", rng, rng.Size(len(chapters))))
	}

	req := services.DownloadRequest{
		Provider:    provider,
		Manga:       manga,
		Chapters:    chapters,
		Destination: destination(cmd),
		Format:      format,
		Options: services.Options{
			Parallelism: s.cfg.Jobs,
			Throttle:    s.cfg.Throttle,
			Range:       rng,
			Retry:       s.cfg.RetryPolicy(),
			UserAgent:   s.cfg.UserAgent,
		},
		OutputOptions: []output.Option{output.WithCompressionLevel(s.cfg.CompressionLevel)},
	}

	var (
		ui         *app.App
		onProgress func(services.DownloadProgress)
	)
	if f, ok := out.(*os.File); ok && isTerminal(f) && s.cfg.LogPath == "" {
		ui = app.NewApp(ctx, manga.Title, f)
		ui.Start()
		onProgress = ui.Send
	} else {
		onProgress = logProgress(s.log)
	}

	res, err := s.controller.Download(ctx, req, onProgress)
	if ui != nil {
		if uerr := ui.Wait(); uerr != nil {
			s.log.Debug().Err(uerr).Msg("Progress view failed")
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, styles.StatusCompleted.Render("Done.")+" Saved to "+res.Path)
	return nil
}

// applyDownloadFlags copies explicitly set flags over the config values.
func applyDownloadFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("jobs") {
		cfg.Jobs, _ = f.GetInt("jobs")
	}
	if f.Changed("throttle") {
		cfg.Throttle, _ = f.GetBool("throttle")
	}
	if f.Changed("format") {
		cfg.Format = getString(cmd, "format")
	}
	if f.Changed("branch") {
		cfg.Branch = getString(cmd, "branch")
	}
	if f.Changed("lang") {
		cfg.Language = getString(cmd, "lang")
	}
}

func destination(cmd *cobra.Command) string {
	if d := getString(cmd, "destination"); d != "" {
		return d
	}
	return getString(cmd, "dest")
}

func printSources(cmd *cobra.Command, out io.Writer) error {
	s, err := newSession(cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, p := range s.controller.Providers() {
		search := ""
		if _, ok := p.(sources.Searcher); ok {
			search = styles.MutedStyle.Render(" (search)")
		}
		fmt.Fprintf(out, "%s  %s%s\n", styles.LabelStyle.Render(p.Name()), p.Title(), search)
	}
	return nil
}

// logProgress reports one line per chapter for non interactive output.
func logProgress(log zerolog.Logger) func(services.DownloadProgress) {
	var last string
	return func(p services.DownloadProgress) {
		switch {
		case p.Status == services.StatusDownloading && p.ChapterID != last:
			last = p.ChapterID
			log.Info().
				Str("chapter", p.ChapterName).
				Str("progress", fmt.Sprintf("%d/%d", p.Chapter, p.Chapters)).
				Msg("Downloading chapter")
		case p.Status == services.StatusFinalizing && p.ChapterID == "":
			log.Info().Int("pages", p.Done).Msg("Finalizing output")
		}
	}
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", styles.LabelStyle.Render(label+":"), value)
}

func getString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return strings.TrimSpace(v)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func init() {
	addDownloadFlags(downloadCmd)
}

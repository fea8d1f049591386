package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mangas-dl/pkg/app/styles"
	"github.com/kerbaras/mangas-dl/pkg/config"
	"github.com/kerbaras/mangas-dl/pkg/data"
	"github.com/kerbaras/mangas-dl/pkg/logger"
	"github.com/kerbaras/mangas-dl/pkg/manifest"
	"github.com/kerbaras/mangas-dl/pkg/services"
	"github.com/kerbaras/mangas-dl/pkg/sources"
	"github.com/kerbaras/mangas-dl/pkg/utils"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUnsupported = 2
	ExitNotFound    = 3
	ExitUsage       = 4
	ExitInterrupted = 130
)

var rootCmd = &cobra.Command{
	Use:   "mangas-dl [flags] <link>",
	Short: "Download manga from online sources",
	Long: "Download a manga into a directory of chapter archives or a single CBZ/ZIP archive.\n" +
		"Interrupted downloads resume where they stopped when run again with the same destination.",
	Version:       manifest.AppVersion,
	Args:          maxArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDownload,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/mangas-dl/config.toml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "show debug logs")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", data.ErrInvalidArgument, err)
	})
	addDownloadFlags(rootCmd)

	// Add all subcommands
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(epubCmd)
	rootCmd.AddCommand(configCmd)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(report(os.Stderr, err))
}

// report prints err for the user and returns the matching exit code.
func report(w io.Writer, err error) int {
	code := ExitCode(err)
	switch code {
	case ExitOK:
	case ExitInterrupted:
		fmt.Fprintln(w, styles.StatusWarning.Render("Interrupted by user"))
	default:
		fmt.Fprintln(w, styles.StatusError.Render("Error: "+err.Error()))
	}
	return code
}

func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, data.ErrUnsupported):
		return ExitUnsupported
	case errors.Is(err, data.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, data.ErrInvalidArgument):
		return ExitUsage
	default:
		return ExitFailure
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return fmt.Errorf("%w: accepts at most %d arg(s), received %d", data.ErrInvalidArgument, n, len(args))
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return fmt.Errorf("%w: requires at least %d arg(s), only received %d", data.ErrInvalidArgument, n, len(args))
		}
		return nil
	}
}

// session holds what every command needs: settings, logger, the library and
// the controller wired to the providers.
type session struct {
	cfg        *config.Config
	log        zerolog.Logger
	library    *data.Repository
	controller *services.MangaController
}

// newSession loads the configuration and wires the controller. overrides runs
// after loading so command flags win over the config file.
func newSession(cmd *cobra.Command, overrides func(*config.Config) error) (*session, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "DEBUG"
	}
	if overrides != nil {
		if err := overrides(cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	log, err := logger.New(logger.Options{
		Level:      cfg.LogLevel,
		Path:       utils.ExpandHome(cfg.LogPath),
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		log.Debug().Str("file", cfg.File).Msg("Loaded config")
	}

	s := &session{cfg: cfg, log: log}
	client := &http.Client{Timeout: cfg.Timeout}
	controllerConfig := services.ControllerConfig{
		Providers: []sources.Provider{
			sources.NewMangaDex(sources.WithHTTPClient(client), sources.WithUserAgent(cfg.UserAgent)),
		},
		Client:  client,
		Limiter: services.NewRateLimiter(cfg.ThrottleInterval),
		Logger:  log,
	}

	if cfg.LibraryPath != "" {
		repo, err := data.OpenRepository(utils.ExpandHome(cfg.LibraryPath))
		if err != nil {
			log.Warn().Err(err).Msg("Library unavailable, downloads will not be recorded")
		} else {
			s.library = repo
			controllerConfig.Library = repo
		}
	}

	s.controller = services.NewMangaController(controllerConfig)
	return s, nil
}

func (s *session) Close() {
	if s.library != nil {
		s.library.Close()
	}
}

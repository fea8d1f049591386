package app

import (
	"context"
	"errors"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/mangas-dl/pkg/app/components"
	"github.com/kerbaras/mangas-dl/pkg/app/styles"
	"github.com/kerbaras/mangas-dl/pkg/services"
)

const defaultWidth = 80

type progressMsg services.DownloadProgress

// downloadModel shows the progress of one download session. It quits on its
// own once a final status arrives.
type downloadModel struct {
	title   string
	tracker *components.ProgressTracker
	done    bool
}

func newDownloadModel(title string) downloadModel {
	return downloadModel{
		title:   title,
		tracker: components.NewProgressTracker(defaultWidth),
	}
}

func (m downloadModel) Init() tea.Cmd {
	return nil
}

func (m downloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.tracker.SetWidth(msg.Width)

	case progressMsg:
		m.tracker.Update(services.DownloadProgress(msg))
		if components.IsFinal(msg.Status) {
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m downloadModel) View() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.tracker.View())
	if m.done {
		b.WriteString("\n")
	}
	return b.String()
}

// App renders download progress on a terminal.
type App struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

// NewApp prepares the progress view for title. Signals and keyboard input
// are left to the caller; cancelling ctx stops the view.
func NewApp(ctx context.Context, title string, out io.Writer) *App {
	return &App{
		program: tea.NewProgram(
			newDownloadModel(title),
			tea.WithContext(ctx),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
}

// Start runs the view in the background.
func (a *App) Start() {
	go func() {
		defer close(a.done)
		_, a.err = a.program.Run()
	}()
}

// Send forwards a progress update. It is safe to call from any goroutine.
func (a *App) Send(p services.DownloadProgress) {
	a.program.Send(progressMsg(p))
}

// Wait stops the view and blocks until it has restored the terminal. A view
// stopped by its context is not an error.
func (a *App) Wait() error {
	a.program.Quit()
	<-a.done
	if errors.Is(a.err, tea.ErrProgramKilled) || errors.Is(a.err, context.Canceled) {
		return nil
	}
	return a.err
}

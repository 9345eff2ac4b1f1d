package screens

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/bukadown/pkg/app/components"
	"github.com/kerbaras/bukadown/pkg/app/styles"
	"github.com/kerbaras/bukadown/pkg/services"
)

// RunScreen shows the progress of one conversion and quits when it ends.
// Aborting cancels the run and keeps the screen up until the run returned.
type RunScreen struct {
	ctx    context.Context
	cancel context.CancelFunc
	conv   *services.Converter
	input  string
	output string

	spinner  spinner.Model
	tracker  *components.ProgressTracker
	once     sync.Once
	done     chan struct{}
	result   runFinishedMsg // written by start before done is closed
	stopping bool
	finished bool
	report   *services.Report
	err      error
	width    int
}

func NewRunScreen(ctx context.Context, conv *services.Converter, input, output string) *RunScreen {
	ctx, cancel := context.WithCancel(ctx)
	return &RunScreen{
		ctx:     ctx,
		cancel:  cancel,
		conv:    conv,
		input:   input,
		output:  output,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.ProgressBarStyle)),
		tracker: components.NewProgressTracker(76),
		done:    make(chan struct{}),
		width:   80,
	}
}

// Report returns the report of the finished run, nil before it finished.
func (s *RunScreen) Report() *services.Report {
	return s.report
}

// Err returns the error the run finished with.
func (s *RunScreen) Err() error {
	return s.err
}

type eventMsg services.Event

type runFinishedMsg struct {
	report *services.Report
	err    error
}

func (s *RunScreen) Init() tea.Cmd {
	return tea.Batch(s.spinner.Tick, s.start, s.listen)
}

func (s *RunScreen) start() tea.Msg {
	ran := false
	s.once.Do(func() {
		defer close(s.done)
		ran = true
		report, err := s.conv.Run(s.ctx, s.input, s.output)
		s.result = runFinishedMsg{report: report, err: err}
	})
	if !ran {
		return nil
	}
	return s.result
}

// Wait cancels the run if it is still going and blocks until it returned,
// so nothing of the run outlives the program. A run that has not started
// yet never starts.
func (s *RunScreen) Wait() {
	s.cancel()
	s.once.Do(func() {
		s.result = runFinishedMsg{err: context.Canceled}
		close(s.done)
	})
	<-s.done
	s.report, s.err = s.result.report, s.result.err
}

func (s *RunScreen) listen() tea.Msg {
	select {
	case ev := <-s.conv.Events():
		return eventMsg(ev)
	case <-s.done:
		return nil
	}
}

func (s *RunScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.tracker.SetWidth(msg.Width - 4)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !s.stopping {
			// the run drains its decode queue and reports back with
			// runFinishedMsg
			s.stopping = true
			s.cancel()
		}

	case eventMsg:
		s.tracker.Update(services.Event(msg))
		return s, s.listen

	case runFinishedMsg:
		s.finished = true
		s.report = msg.report
		s.err = msg.err
		s.cancel()
		return s, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd
	}

	return s, nil
}

func (s *RunScreen) View() string {
	header := fmt.Sprintf("%s Converting %s → %s", s.spinner.View(), s.input, s.output)
	help := "ctrl+c: abort"
	switch {
	case s.finished:
		header = "Finished " + s.output
	case s.stopping:
		header = fmt.Sprintf("%s Stopping…", s.spinner.View())
		help = "waiting for running jobs"
	}
	header = styles.TitleStyle.Render(header)

	body := s.tracker.View()
	if s.finished && s.err != nil {
		body += styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n"
	}

	return fmt.Sprintf("%s\n\n%s%s", header, body, styles.HelpStyle.Render(help))
}

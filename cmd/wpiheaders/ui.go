// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	bspinner "charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	lipglossv2 "charm.land/lipgloss/v2"
	"golang.org/x/term"
)

type (
	// statusIndicator runs a bubbletea spinner on a terminal while a run is
	// active. On anything else it only logs.
	statusIndicator struct {
		out io.Writer
		tty bool

		mu       sync.Mutex
		done     chan struct{}
		finished chan struct{}
	}

	// spinnerModel shows the spinner and label until done is closed, then
	// clears its line.
	spinnerModel struct {
		label    string
		spinner  bspinner.Model
		done     <-chan struct{}
		quitting bool
	}

	// spinnerDoneMsg reports that the run the spinner stands for is over.
	spinnerDoneMsg struct{}

	// consoleNotifier prints coordinator notices. Info goes to out, Error to
	// errOut.
	consoleNotifier struct {
		mu     sync.Mutex
		out    io.Writer
		errOut io.Writer
	}
)

func newStatusIndicator(out io.Writer) *statusIndicator {
	return &statusIndicator{out: out, tty: isTerminal(out)}
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newSpinnerModel(label string, done <-chan struct{}) spinnerModel {
	return spinnerModel{
		label: label,
		spinner: bspinner.New(
			bspinner.WithSpinner(bspinner.Dot),
			bspinner.WithStyle(lipglossv2.NewStyle().Foreground(lipglossv2.Color(string(ColorPrimary)))),
		),
		done: done,
	}
}

// Show starts the spinner. A second Show while visible is ignored.
func (s *statusIndicator) Show(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tty {
		slog.Debug("busy", "label", label)
		return
	}
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.finished = make(chan struct{})

	// Input stays off so the terminal is never put in raw mode and Ctrl+C
	// keeps reaching the command's signal handler.
	program := tea.NewProgram(newSpinnerModel(label, s.done),
		tea.WithOutput(s.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	go func(finished chan<- struct{}) {
		defer close(finished)
		if _, err := program.Run(); err != nil {
			slog.Debug("spinner stopped", "error", err)
		}
	}(s.finished)
}

// Hide stops the spinner and waits until its line is cleared.
func (s *statusIndicator) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		return
	}
	close(s.done)
	<-s.finished
	s.done, s.finished = nil, nil
}

// Init implements tea.Model.
func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return m.spinner.Tick() },
		waitForDone(m.done),
	)
}

// Update implements tea.Model.
func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case bspinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case spinnerDoneMsg:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model. The final view is empty so nothing is left
// behind on the terminal.
func (m spinnerModel) View() tea.View {
	return tea.NewView(m.line())
}

func (m spinnerModel) line() string {
	if m.quitting {
		return ""
	}
	return m.spinner.View() + " " + m.label
}

func waitForDone(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return spinnerDoneMsg{}
	}
}

func newConsoleNotifier(out, errOut io.Writer) *consoleNotifier {
	return &consoleNotifier{out: out, errOut: errOut}
}

// Info prints an informational notice.
func (n *consoleNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintln(n.out, SuccessStyle.Render("•")+" "+msg)
}

// Error prints a failure notice.
func (n *consoleNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintln(n.errOut, ErrorStyle.Render("✗")+" "+msg)
}

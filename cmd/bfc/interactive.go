package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasmgen"
	"github.com/wippyai/wasmgen/bf"
	"github.com/wippyai/wasmgen/engine"
	"github.com/wippyai/wasmgen/wasm"
)

// runTimeout stops programs that never halt.
const runTimeout = 5 * time.Second

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444"))
)

type focusArea int

const (
	focusSource focusArea = iota
	focusInput
)

type interactiveModel struct {
	err      error
	runner   *engine.Runner
	opts     *options
	status   string
	output   []byte
	listing  string
	source   textarea.Model
	input    textinput.Model
	view     viewport.Model
	focus    focusArea
	showDump bool
	running  bool
}

type runnerMsg struct {
	err    error
	runner *engine.Runner
}

type runResultMsg struct {
	err     error
	output  []byte
	listing string
	size    int
	elapsed time.Duration
}

type savedMsg struct {
	err  error
	path string
	size int
}

func newInteractiveModel(opts *options, src string) *interactiveModel {
	ta := textarea.New()
	ta.Placeholder = "++++++++[>++++++++<-]>+."
	ta.ShowLineNumbers = true
	ta.SetValue(src)
	ta.Focus()

	ti := textinput.New()
	ti.Prompt = "input: "
	ti.Placeholder = "bytes read by ,"
	ti.Width = 40

	return &interactiveModel{
		opts:   opts,
		source: ta,
		input:  ti,
		view:   viewport.New(80, 8),
		status: "ctrl+r to compile and run",
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.startRunner)
}

func (m *interactiveModel) startRunner() tea.Msg {
	r, err := engine.NewRunnerWithConfig(context.Background(), wasmgen.RunnerConfig(m.opts.compile))
	return runnerMsg{runner: r, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w := msg.Width - 4
		h := (msg.Height - 10) / 2
		if h < 3 {
			h = 3
		}
		m.source.SetWidth(w)
		m.source.SetHeight(h)
		m.input.Width = w - len(m.input.Prompt)
		m.view.Width = w
		m.view.Height = h
		m.refreshView()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.runner != nil {
				_ = m.runner.Close(context.Background())
			}
			return m, tea.Quit

		case "tab":
			if m.focus == focusSource {
				m.focus = focusInput
				m.source.Blur()
				cmds = append(cmds, m.input.Focus())
			} else {
				m.focus = focusSource
				m.input.Blur()
				cmds = append(cmds, m.source.Focus())
			}
			return m, tea.Batch(cmds...)

		case "ctrl+r":
			if m.runner == nil || m.running {
				return m, nil
			}
			m.running = true
			m.status = "running..."
			return m, m.runProgram(m.source.Value(), m.input.Value())

		case "ctrl+d":
			m.showDump = !m.showDump
			m.refreshView()
			return m, nil

		case "ctrl+s":
			if m.opts.output == "" {
				m.status = "no -o file given"
				return m, nil
			}
			return m, m.save(m.source.Value())

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}

	case runnerMsg:
		m.runner = msg.runner
		m.err = msg.err

	case runResultMsg:
		m.running = false
		m.output = msg.output
		m.listing = msg.listing
		m.err = msg.err
		if msg.err == nil {
			m.status = fmt.Sprintf("module %d bytes, ran in %s, %d bytes of output",
				msg.size, msg.elapsed.Round(time.Millisecond), len(msg.output))
		} else {
			m.status = "run failed"
		}
		m.refreshView()

	case savedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = fmt.Sprintf("wrote %d bytes to %s", msg.size, msg.path)
		}
	}

	var cmd tea.Cmd
	if m.focus == focusSource {
		m.source, cmd = m.source.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *interactiveModel) runProgram(src, input string) tea.Cmd {
	r := m.runner
	opts := m.opts.compile
	return func() tea.Msg {
		mod, err := bf.Compile(src, opts)
		if err != nil {
			return runResultMsg{err: err}
		}
		bin, err := wasm.Assemble(mod)
		if err != nil {
			return runResultMsg{err: err}
		}
		var listing strings.Builder
		_ = dumpModule(&listing, mod)

		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		var out bytes.Buffer
		start := time.Now()
		err = r.Run(ctx, bin, strings.NewReader(input), &out)
		return runResultMsg{
			err:     err,
			output:  out.Bytes(),
			listing: listing.String(),
			size:    len(bin),
			elapsed: time.Since(start),
		}
	}
}

func (m *interactiveModel) save(src string) tea.Cmd {
	path := m.opts.output
	opts := m.opts.compile
	return func() tea.Msg {
		bin, err := wasmgen.Compile(src, opts)
		if err != nil {
			return savedMsg{err: err}
		}
		if err := os.WriteFile(path, bin, 0o644); err != nil {
			return savedMsg{err: fmt.Errorf("write module: %w", err)}
		}
		return savedMsg{path: path, size: len(bin)}
	}
}

func (m *interactiveModel) refreshView() {
	if m.showDump {
		m.view.SetContent(m.listing)
	} else {
		m.view.SetContent(resultStyle.Render(printable(m.output)))
	}
	m.view.GotoTop()
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	title := "bfc"
	if m.opts.source != "" {
		title += " " + m.opts.source
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("source"))
	b.WriteString("\n")
	b.WriteString(m.source.View())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	pane := "output"
	if m.showDump {
		pane = "listing"
	}
	b.WriteString(labelStyle.Render(pane))
	b.WriteString("\n")
	b.WriteString(paneStyle.Render(m.view.View()))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	} else {
		b.WriteString(m.status)
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("ctrl+r run • tab switch • ctrl+d output/listing • ctrl+s save • esc quit"))
	return b.String()
}

// printable renders program output, escaping bytes that are not printable
// ASCII or line breaks.
func printable(out []byte) string {
	var b strings.Builder
	for _, c := range out {
		switch {
		case c == '\n' || c == '\t':
			b.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, `\x%02x`, c)
		}
	}
	return b.String()
}

func runInteractive(opts *options) error {
	var src string
	if opts.source != "" && opts.source != "-" {
		data, err := os.ReadFile(opts.source)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		src = string(data)
	}
	p := tea.NewProgram(newInteractiveModel(opts, src), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

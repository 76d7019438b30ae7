// Package tui is the interactive terminal chat. Answers stream into the
// transcript fragment by fragment as the model produces them.
package tui

import (
	"context"
	"iter"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/hyperjump/bayan/internal/rag"
	"github.com/hyperjump/bayan/pkg/utils"
	"go.uber.org/zap"
)

// Asker is the TUI-facing subset of the pipeline.
type Asker interface {
	StreamQuery(ctx context.Context, question string) (iter.Seq2[string, error], error)
}

type turn struct {
	question string
	answer   strings.Builder
	failed   bool
}

type fragmentMsg struct {
	id   int
	text string
}

type streamDoneMsg struct {
	id  int
	err error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	asker    Asker
	ctx      context.Context
	logger   *zap.Logger
	summary  string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	turns    []*turn

	streamID  int
	streaming bool
	events    chan tea.Msg
	cancel    context.CancelFunc

	status string
	ready  bool
}

// New creates a chat model. summary is shown under the title.
func New(ctx context.Context, asker Asker, summary string, logger *zap.Logger) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "اكتب سؤالك واضغط Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		asker:    asker,
		ctx:      ctx,
		logger:   utils.LoggerOrNop(logger),
		summary:  summary,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready. Enter to ask, Esc to stop an answer, Ctrl+C to quit.",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles keys, window size and stream events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptStyle.GetFrameSize()
		_, qh := inputStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, input frame
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.stop()
			return m, tea.Quit
		case tea.KeyEsc:
			if m.streaming {
				m.stop()
				m.status = "Stopped."
				return m, nil
			}
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.streaming {
				return m, nil
			}
			m.input.SetValue("")
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		}

	case fragmentMsg:
		if msg.id != m.streamID || len(m.turns) == 0 {
			return m, nil
		}
		m.turns[len(m.turns)-1].answer.WriteString(msg.text)
		m.refresh()
		return m, waitForEvent(m.events)

	case streamDoneMsg:
		if msg.id != m.streamID {
			return m, nil
		}
		m.streaming = false
		m.cancel = nil
		if msg.err != nil {
			m.logger.Error("chat answer failed", zap.Error(msg.err))
			if t := m.turns[len(m.turns)-1]; t.answer.Len() == 0 {
				t.failed = true
			}
			m.status = rag.ErrorMessage
		} else {
			m.status = "Done."
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask starts streaming the answer to q in the background. Fragments come back
// one message at a time through m.events.
func (m *Model) ask(q string) tea.Cmd {
	m.streamID++
	id := m.streamID
	m.turns = append(m.turns, &turn{question: q})
	m.streaming = true
	m.status = "Answering..."
	m.refresh()

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	events := make(chan tea.Msg)
	m.events = events
	asker := m.asker

	go func() {
		defer close(events)
		send := func(msg tea.Msg) bool {
			select {
			case events <- msg:
				return true
			case <-ctx.Done():
				return false
			}
		}
		seq, err := asker.StreamQuery(ctx, q)
		if err != nil {
			send(streamDoneMsg{id: id, err: err})
			return
		}
		for fragment, err := range seq {
			if err != nil {
				send(streamDoneMsg{id: id, err: err})
				return
			}
			if !send(fragmentMsg{id: id, text: fragment}) {
				return
			}
		}
		send(streamDoneMsg{id: id})
	}()
	return waitForEvent(events)
}

// stop cancels the running stream. Late messages from it are ignored by id.
func (m *Model) stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.streaming {
		m.streaming = false
		m.streamID++
	}
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Bayan")
	summary := summaryStyle.Render(m.summary)
	status := statusStyle.Render(m.status)
	if m.streaming {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("? " + t.question))
		b.WriteString("\n")
		if t.failed {
			b.WriteString(errorStyle.Render(rag.ErrorMessage))
			continue
		}
		b.WriteString(t.answer.String())
	}
	return b.String()
}

// Transcript returns the rendered conversation without styling frames.
func (m Model) Transcript() string {
	return m.renderTranscript()
}

// Run starts the full-screen chat and blocks until the user quits.
func Run(ctx context.Context, asker Asker, summary string, logger *zap.Logger) error {
	p := tea.NewProgram(New(ctx, asker, summary, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	summaryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"research/internal/domain"
	"research/internal/lexical"
	"research/internal/service"
)

// AskPort is the TUI-facing subset of the assistant.
type AskPort interface {
	Ask(ctx context.Context, req service.AskRequest) (*domain.FinalResponse, error)
}

type answerMsg struct {
	query string
	resp  *domain.FinalResponse
	err   error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx       context.Context
	service   AskPort
	userID    string
	threadID  string
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	response  *domain.FinalResponse
	summary   string
	status    string
	cursor    int
	ready     bool
	waiting   bool
	lastQuery string
}

// New creates a chat model. All questions of one session share a thread.
func New(ctx context.Context, svc AskPort, userID, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:      ctx,
		service:  svc,
		userID:   userID,
		threadID: uuid.NewString(),
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   "Ready. Ask about your documents.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.service.Ask(m.ctx, service.AskRequest{Query: q, UserID: m.userID, ThreadID: m.threadID})
		return answerMsg{query: q, resp: resp, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResponse())
		return m, nil
	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.response = nil
		} else {
			m.response = msg.resp
			m.cursor = 0
			m.lastQuery = msg.query
			m.status = fmt.Sprintf("Answered %q", msg.query)
		}
		m.viewport.SetContent(m.renderResponse())
		return m, nil
	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.waiting {
				m.waiting = true
				m.status = fmt.Sprintf("Researching %q", q)
				m.input.SetValue("")
				return m, tea.Batch(m.ask(q), m.spinner.Tick)
			}
		case "down":
			if n := m.citationCount(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderResponse())
				return m, nil
			}
		case "up":
			if n := m.citationCount(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderResponse())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Research Assistant")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	line := m.status
	if m.waiting {
		line = m.spinner.View() + " " + line
	}
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(line)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) citationCount() int {
	if m.response == nil {
		return 0
	}
	return len(m.response.Citations)
}

func (m Model) renderResponse() string {
	r := m.response
	if r == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(statusStyle(r.Status).Render(string(r.Status)))
	fmt.Fprintf(&b, "  source=%s  confidence=%.2f\n\n", r.SourceUsed, r.Confidence)
	if r.Answer == "" {
		b.WriteString(dimStyle.Render("No answer could be drafted."))
	} else {
		b.WriteString(highlightBestSentence(r.Answer, m.lastQuery))
	}
	b.WriteString("\n")
	for _, missing := range r.Missing {
		b.WriteString("\n" + dimStyle.Render("missing: "+missing))
	}
	if len(r.Citations) > 0 {
		fmt.Fprintf(&b, "\n\nCitations (%d/%d)\n", m.cursor+1, len(r.Citations))
		for i, c := range r.Citations {
			entry := fmt.Sprintf("%s  %s", c.Label, c.Locator)
			if i == m.cursor {
				b.WriteString(highlightStyle.Render("› " + entry))
			} else {
				b.WriteString("  " + entry)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func statusStyle(s domain.Status) lipgloss.Style {
	color := lipgloss.Color("9")
	switch s {
	case domain.StatusOK:
		color = lipgloss.Color("10")
	case domain.StatusInsufficientContext:
		color = lipgloss.Color("11")
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color)
}

// highlightBestSentence emphasizes the sentence sharing most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := lexical.Sentences(text)
	qTokens := lexical.TokenSet(query)
	if len(qTokens) == 0 || len(sentences) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		if score := lexical.Overlap(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	out := make([]string, len(sentences))
	for i, s := range sentences {
		if i == bestIdx {
			out[i] = highlightStyle.Render(s)
		} else {
			out[i] = s
		}
	}
	return strings.Join(out, " ")
}

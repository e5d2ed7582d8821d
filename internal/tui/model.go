package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mathrag/internal/service"
	"mathrag/internal/textutil"
)

// RAGPort is the TUI-facing subset of the knowledge registry.
type RAGPort interface {
	Retrieve(ctx context.Context, base, query string, k int) (service.Result, error)
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service  RAGPort
	bases    []string
	base     int
	topK     int
	input    textinput.Model
	viewport viewport.Model
	result   service.Result
	summary  string
	status   string
	cursor   int
	ready    bool
}

// New creates a new TUI model instance. bases lists the knowledge bases the
// user can cycle through with Tab; the first one is selected.
func New(service RAGPort, bases []string, topK int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a math question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		bases:    bases,
		topK:     topK,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Loaded. Type to search, Tab switches knowledge base.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentSource())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if q := strings.TrimSpace(m.input.Value()); q != "" {
				m.search(q)
				return m, nil
			}
		case "tab":
			if len(m.bases) > 1 {
				m.base = (m.base + 1) % len(m.bases)
				m.status = "Knowledge base: " + m.currentBase()
				return m, nil
			}
		case "down":
			if n := len(m.result.Sources); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrentSource())
				return m, nil
			}
		case "up":
			if n := len(m.result.Sources); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrentSource())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) search(q string) {
	res, err := m.service.Retrieve(context.Background(), m.currentBase(), q, m.topK)
	m.cursor = 0
	if err != nil {
		m.status = "Error: " + err.Error()
		m.result = service.Result{}
	} else {
		m.result = res
		m.status = fmt.Sprintf("[%s] %s", m.currentBase(), res.Message)
	}
	m.viewport.SetContent(m.renderCurrentSource())
}

func (m Model) currentBase() string {
	if len(m.bases) == 0 {
		return ""
	}
	return m.bases[m.base]
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Math Knowledge Base · " + m.currentBase())
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	statusStyle := okStyle
	if m.result.Query != "" && !m.result.RAGUsed {
		statusStyle = fallbackStyle
	}
	status := statusStyle.Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentSource() string {
	if m.result.Query == "" {
		return "No results yet."
	}
	if !m.result.RAGUsed {
		return "No context retrieved; answers fall back to general knowledge.\n\n" + m.result.Message
	}
	src := m.result.Sources[m.cursor]
	title := fmt.Sprintf("Source %d/%d  %s  page %d  relevance=%.3f",
		m.cursor+1, len(m.result.Sources), src.FileName, src.Page, src.Relevance)
	body := highlightBestSentence(src.Text, m.result.Query)
	return title + "\n\n" + body
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	fallbackStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func highlightBestSentence(text, query string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	qTokens := textutil.TokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	for t := range textutil.TokenSet(sentence) {
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}

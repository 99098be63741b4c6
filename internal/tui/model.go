// Package tui is the interactive question-answering interface.
package tui

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfrag/internal/service"
)

// Asker is the TUI-facing subset of the pipeline.
type Asker interface {
	Answer(ctx context.Context, path, question string) service.QueryResult
	Stream(ctx context.Context, question, answer string, w io.Writer) error
}

// ReindexedMsg tells the model the document index was rebuilt.
type ReindexedMsg struct{ Err error }

type answerMsg struct {
	question string
	result   service.QueryResult
}

type chunkMsg string

type streamDoneMsg struct{ err error }

type exchange struct {
	question string
	answer   string
	sources  []string
	err      string
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx      context.Context
	asker    Asker
	path     string
	stream   bool
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	overview string
	status   string
	history  []exchange
	busy     bool
	ready    bool

	// streamed display of the current answer
	chunks    chan string
	streamErr chan error
	streamed  *strings.Builder

	// retrieved passages of the last answer, browsed with up/down
	passages []service.TracePassage
	cursor   int
	showCtx  bool
	lastQ    string
}

// New creates a new TUI model for the document at path. When stream is set
// answers are shown as the model streams them.
func New(ctx context.Context, asker Asker, path, overview string, stream bool) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or type exit to quit"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:      ctx,
		asker:    asker,
		path:     path,
		stream:   stream,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		overview: overview,
		status:   "Ready! Ask questions about your PDF (type 'exit' to quit)",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func isExit(q string) bool {
	switch strings.ToLower(q) {
	case "exit", "quit", "q":
		return true
	}
	return false
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and overview, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil

	case answerMsg:
		return m.handleAnswer(msg)

	case chunkMsg:
		m.streamed.WriteString(string(msg))
		m.history[len(m.history)-1].answer = m.streamed.String()
		m.refresh()
		return m, waitChunk(m.chunks, m.streamErr)

	case streamDoneMsg:
		m.busy = false
		m.chunks, m.streamErr = nil, nil
		if msg.err != nil {
			m.status = "Streaming interrupted: " + msg.err.Error()
		} else {
			m.status = "Done."
		}
		m.refresh()
		return m, nil

	case ReindexedMsg:
		if msg.Err != nil {
			m.status = "Reindex failed: " + msg.Err.Error()
		} else {
			m.status = "Document changed; index rebuilt."
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
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
			if q == "" || m.busy {
				return m, nil
			}
			if isExit(q) {
				return m, tea.Quit
			}
			m.input.SetValue("")
			m.busy = true
			m.showCtx = false
			m.status = "Thinking..."
			m.history = append(m.history, exchange{question: q})
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "tab":
			if len(m.passages) > 0 {
				m.showCtx = !m.showCtx
				m.refresh()
			}
			return m, nil
		case "down":
			if m.showCtx && len(m.passages) > 0 {
				m.cursor = (m.cursor + 1) % len(m.passages)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.showCtx && len(m.passages) > 0 {
				m.cursor = (m.cursor - 1 + len(m.passages)) % len(m.passages)
				m.refresh()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		return answerMsg{question: q, result: m.asker.Answer(m.ctx, m.path, q)}
	}
}

func (m Model) handleAnswer(msg answerMsg) (tea.Model, tea.Cmd) {
	last := &m.history[len(m.history)-1]
	if !msg.result.OK() {
		last.err = msg.result.Message
		m.busy = false
		m.status = "Error. Ask another question."
		m.refresh()
		return m, nil
	}

	last.sources = msg.result.Sources
	m.passages = nil
	m.cursor = 0
	m.lastQ = msg.question
	if msg.result.Trace != nil {
		m.passages = msg.result.Trace.SourceDocuments
	}

	if !m.stream {
		last.answer = msg.result.Answer
		m.busy = false
		m.status = "Done. Tab shows the retrieved passages."
		m.refresh()
		return m, nil
	}

	m.chunks = make(chan string)
	m.streamErr = make(chan error, 1)
	m.streamed = &strings.Builder{}
	go func(asker Asker, ch chan<- string, errc chan<- error) {
		errc <- asker.Stream(m.ctx, msg.question, msg.result.Answer, chanWriter(ch))
		close(ch)
	}(m.asker, m.chunks, m.streamErr)
	m.status = "Streaming..."
	m.refresh()
	return m, waitChunk(m.chunks, m.streamErr)
}

// waitChunk delivers the next streamed chunk, or the stream result once the
// chunk channel is closed.
func waitChunk(ch <-chan string, errc <-chan error) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return streamDoneMsg{err: <-errc}
		}
		return chunkMsg(s)
	}
}

type chanWriter chan<- string

func (w chanWriter) Write(p []byte) (int, error) {
	w <- string(p)
	return len(p), nil
}

func (m *Model) refresh() {
	if m.showCtx {
		m.viewport.SetContent(m.renderPassage())
		return
	}
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("PDF RAG Assistant: " + filepath.Base(m.path))
	overview := dimStyle.Render(m.overview)
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + overview + "\n" + results + "\n" + input + "\n" + statusStyle.Render(status)
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Render("Q: "+ex.question) + "\n")
		switch {
		case ex.err != "":
			b.WriteString(errorStyle.Render("Error: "+ex.err) + "\n")
		default:
			b.WriteString(answerStyle.Render("A: ") + ex.answer + "\n")
			if len(ex.sources) > 0 {
				b.WriteString(dimStyle.Render("Sources:") + "\n")
				for _, s := range ex.sources {
					b.WriteString(dimStyle.Render("- "+s) + "\n")
				}
			}
		}
	}
	return b.String()
}

func (m Model) renderPassage() string {
	p := m.passages[m.cursor]
	page := "unknown page"
	if p.Page > 0 {
		page = fmt.Sprintf("page %d", p.Page)
	}
	title := fmt.Sprintf("Passage %d/%d  %s  score=%.3f", m.cursor+1, len(m.passages), page, p.Score)
	return title + "\n\n" + highlightBestSentence(p.Text, m.lastQ)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence marks the sentence of text sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
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
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}

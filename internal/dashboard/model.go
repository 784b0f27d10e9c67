package dashboard

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/engine"
	"github.com/shaiso/synapse/internal/pipeline"
)

// DefaultPace — пауза между кадрами.
const DefaultPace = 400 * time.Millisecond

// historySize — сколько предыдущих заголовков показывать под текущим кадром.
const historySize = 8

// Source — ленивый поток снимков. *engine.Execution удовлетворяет ему.
type Source interface {
	Next() bool
	Snapshot() engine.Snapshot
	Err() error
	Close()
}

// tickMsg — сигнал забрать следующий снимок.
type tickMsg struct{}

// Model — bubbletea модель живого dashboard.
// На каждый tick забирает из Source ровно один снимок.
type Model struct {
	source   Source
	desc     pipeline.Description
	names    map[string]string
	renderer *Renderer
	theme    *Theme
	pace     time.Duration

	frames []Frame
	done   bool
	err    error
}

// NewModel создаёт модель.
func NewModel(source Source, desc pipeline.Description, pace time.Duration) Model {
	names := make(map[string]string, len(desc.Nodes))
	for _, n := range desc.Nodes {
		names[n.ID] = n.Name
	}
	theme := DefaultTheme()

	return Model{
		source:   source,
		desc:     desc,
		names:    names,
		renderer: NewRenderer(theme, 0),
		theme:    theme,
		pace:     pace,
	}
}

// Init реализует tea.Model.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update реализует tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !m.done {
				m.source.Close()
				m.done = true
				m.err = m.source.Err()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.renderer.SetWidth(msg.Width)

	case tickMsg:
		if m.done {
			return m, nil
		}
		if m.source.Next() {
			snap := m.source.Snapshot()
			m.frames = append(m.frames, FrameFromSnapshot(snap, m.names[snap.NodeID]))
			return m, m.tick()
		}
		m.done = true
		m.err = m.source.Err()
	}

	return m, nil
}

// View реализует tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.theme.TitleStyle.Render("Synapse — live orchestration"))
	b.WriteString("\n\n")

	current := ""
	if f, ok := m.Last(); ok {
		current = f.NodeID
	}
	b.WriteString(m.renderer.Graph(m.desc, current))
	b.WriteString("\n\n")

	if len(m.frames) > 1 {
		from := max(0, len(m.frames)-1-historySize)
		for _, f := range m.frames[from : len(m.frames)-1] {
			b.WriteString(m.theme.LogStyle.Render(m.renderer.Header(f)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if f, ok := m.Last(); ok {
		b.WriteString(m.renderer.Frame(f))
		b.WriteString("\n\n")
	} else {
		b.WriteString(m.theme.HelpStyle.Render("waiting for the first step..."))
		b.WriteString("\n\n")
	}

	if m.done {
		b.WriteString(m.renderer.Summary(m.Final(), len(m.frames), m.err))
		b.WriteString("\n\n")
	}

	b.WriteString(m.theme.HelpStyle.Render("q: quit"))
	return b.String()
}

// Done сообщает, закончился ли поток.
func (m Model) Done() bool { return m.done }

// Err возвращает ошибку, которой закончился поток.
func (m Model) Err() error { return m.err }

// Frames возвращает полученные кадры.
func (m Model) Frames() []Frame { return m.frames }

// Last возвращает последний кадр.
func (m Model) Last() (Frame, bool) {
	if len(m.frames) == 0 {
		return Frame{}, false
	}
	return m.frames[len(m.frames)-1], true
}

// Final возвращает Record последнего кадра.
func (m Model) Final() domain.Record {
	if f, ok := m.Last(); ok {
		return f.Record
	}
	return domain.NewRecord()
}

func (m Model) tick() tea.Cmd {
	if m.pace <= 0 {
		return func() tea.Msg { return tickMsg{} }
	}
	return tea.Tick(m.pace, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

package dashboard

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/engine"
	"github.com/shaiso/synapse/internal/pipeline"
)

// LogTail — сколько последних строк журнала показывать в кадре.
const LogTail = 4

// CelebrationBanner показывается, когда deployment прошёл успешно.
const CelebrationBanner = "🎉  Deployment ready — all checks passed  🎉"

// FailMarker — подстрока test_results, которая отображается как ошибка.
const FailMarker = "FAIL"

// Frame — один снимок для отображения.
type Frame struct {
	Step    int
	NodeID  string
	Name    string
	Record  domain.Record
	Changed []string
}

// FrameFromSnapshot строит Frame из снимка engine.
func FrameFromSnapshot(snap engine.Snapshot, name string) Frame {
	if name == "" {
		name = snap.NodeID
	}
	return Frame{
		Step:    snap.Step,
		NodeID:  snap.NodeID,
		Name:    name,
		Record:  snap.Record,
		Changed: snap.Changed,
	}
}

// Artifact — артефакт, который шаги положили в Record.
type Artifact struct {
	Field string
	Label string
	Body  string
}

var artifactFields = []struct {
	field string
	label string
}{
	{domain.FieldPlan, "Plan"},
	{domain.FieldRefinedStory, "Refined Story"},
	{domain.FieldDBSchema, "Proposed DB Schema"},
	{domain.FieldBackendCode, "Backend API (FastAPI)"},
	{domain.FieldFrontendCode, "Frontend UI (React + Fetch)"},
	{domain.FieldLegacyAnalysis, "Legacy Integration Notes"},
}

// Artifacts возвращает непустые артефакты в порядке pipeline.
// Отсутствующие поля пропускаются.
func Artifacts(rec domain.Record) []Artifact {
	var out []Artifact
	for _, a := range artifactFields {
		if body := rec.String(a.field); body != "" {
			out = append(out, Artifact{Field: a.field, Label: a.label, Body: body})
		}
	}
	return out
}

// LastLogs возвращает не больше n последних строк журнала.
func LastLogs(rec domain.Record, n int) []string {
	logs := rec.Logs()
	if len(logs) > n {
		logs = logs[len(logs)-n:]
	}
	return logs
}

// Celebrate сообщает, заслуживает ли итоговый Record праздничного баннера.
func Celebrate(rec domain.Record) bool {
	return strings.HasPrefix(rec.String(domain.FieldDeploymentStatus), "✅")
}

// Renderer рисует кадры и сводку run. Record только читается.
type Renderer struct {
	theme *Theme
	width int
}

// NewRenderer создаёт Renderer. width <= 0 отключает перенос строк.
func NewRenderer(theme *Theme, width int) *Renderer {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Renderer{theme: theme, width: width}
}

// SetWidth меняет ширину вывода.
func (r *Renderer) SetWidth(width int) {
	r.width = width
}

// Header возвращает строку "N. узел – статус".
func (r *Renderer) Header(f Frame) string {
	return r.theme.HeaderStyle.Render(fmt.Sprintf("%d. %s – %s", f.Step, f.Name, f.Record.Status()))
}

// Frame рисует кадр: заголовок, хвост журнала, артефакты, результаты проверок.
// Тело артефакта показывается только в кадре, где поле изменилось.
func (r *Renderer) Frame(f Frame) string {
	var b strings.Builder

	b.WriteString(r.Header(f))
	b.WriteString("\n")

	for _, line := range LastLogs(f.Record, LogTail) {
		b.WriteString(r.theme.LogStyle.Render("  - " + line))
		b.WriteString("\n")
	}

	for _, a := range Artifacts(f.Record) {
		if !slices.Contains(f.Changed, a.Field) {
			b.WriteString(r.theme.LogStyle.Render("  ✓ " + a.Label))
			b.WriteString("\n")
			continue
		}
		b.WriteString("  " + r.theme.LabelStyle.Render(a.Label+":"))
		b.WriteString("\n")
		b.WriteString(r.theme.CodeStyle.Render(a.Body))
		b.WriteString("\n")
	}

	if results := f.Record.String(domain.FieldTestResults); results != "" {
		b.WriteString("  " + r.testResultStyle(results).Render(results))
		b.WriteString("\n")
	}

	if status := f.Record.String(domain.FieldDeploymentStatus); status != "" {
		b.WriteString("  " + r.theme.InfoStyle.Render(status))
		b.WriteString("\n")
	}

	return r.wrap(strings.TrimRight(b.String(), "\n"))
}

func (r *Renderer) testResultStyle(results string) lipgloss.Style {
	if strings.Contains(results, FailMarker) {
		return r.theme.ErrorStyle
	}
	return r.theme.SuccessStyle
}

// Summary рисует итог run. err — ошибка, прервавшая run.
func (r *Renderer) Summary(final domain.Record, steps int, err error) string {
	if err != nil {
		return r.theme.ErrorStyle.Render(fmt.Sprintf("Run aborted after %d steps: %v", steps, err))
	}

	lines := []string{
		r.theme.TitleStyle.Render("Run finished"),
		fmt.Sprintf("steps: %d   retries: %d   outcome: %s",
			steps, final.RetryCount(), outcomeOrDash(final)),
	}
	if Celebrate(final) {
		lines = append(lines, r.theme.BannerStyle.Render(CelebrationBanner))
	}
	return strings.Join(lines, "\n")
}

// Graph рисует цепочку узлов pipeline и подсвечивает текущий.
// Ребра повторов перечисляются отдельной строкой.
func (r *Renderer) Graph(desc pipeline.Description, current string) string {
	names := make(map[string]string, len(desc.Nodes))
	parts := make([]string, len(desc.Nodes))
	for i, n := range desc.Nodes {
		names[n.ID] = n.Name
		style := r.theme.NodeStyle
		if n.ID == current {
			style = r.theme.CurrentStyle
		}
		parts[i] = style.Render(n.Name)
	}

	lines := []string{strings.Join(parts, " → ")}
	for _, t := range desc.Transitions {
		if !t.Retry {
			continue
		}
		note := fmt.Sprintf("%s ⇢ %s (fail / retry, max %d)", names[t.From], names[t.To], desc.RetryCeiling)
		lines = append(lines, r.theme.RetryEdgeNote.Render(note))
	}

	return r.wrap(strings.Join(lines, "\n"))
}

func (r *Renderer) wrap(s string) string {
	if r.width <= 0 {
		return s
	}
	return r.theme.PanelStyle.Width(r.width - 2).Render(s)
}

func outcomeOrDash(rec domain.Record) string {
	if o := rec.String(domain.FieldOutcome); o != "" {
		return o
	}
	return "-"
}

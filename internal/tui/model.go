package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"squeeze/internal/control"
	"squeeze/internal/processor"
)

// Model renders batch progress and turns key presses into controller
// requests. It quits when the updates channel is closed.
type Model struct {
	updates  <-chan processor.ProgressUpdate
	ctrl     *control.Controller
	title    string
	started  time.Time
	width    int
	total    int
	done     int
	written  int
	skipped  int
	errors   int
	bytesIn  int64
	bytesOut int64
	current  string
	quality  int
	sizeKB   float64
	stopping bool
	quitting bool
}

type doneMsg struct{}

type updateMsg processor.ProgressUpdate

func NewModel(title string, updates <-chan processor.ProgressUpdate, ctrl *control.Controller) Model {
	return Model{title: title, updates: updates, ctrl: ctrl, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.apply(processor.ProgressUpdate(msg))
		return m, listenForUpdates(m.updates)
	case tea.KeyMsg:
		m.handleKey(msg.String())
		return m, nil
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) apply(u processor.ProgressUpdate) {
	m.total += u.TotalDelta
	m.written += u.ProcessedDelta
	m.skipped += u.SkippedDelta
	m.errors += u.ErrorDelta
	m.done += u.ProcessedDelta + u.SkippedDelta + u.ErrorDelta
	m.bytesIn += u.BytesInDelta
	m.bytesOut += u.BytesOutDelta
	if u.Current != "" {
		m.current = u.Current
		m.quality = 0
		m.sizeKB = 0
	}
	if u.Quality > 0 {
		m.quality = u.Quality
	}
	if u.SizeKB > 0 {
		m.sizeKB = u.SizeKB
	}
}

// The batch keeps running until it reaches a suspension point, so stop only
// flags the request; the model exits when the batch closes the channel.
func (m *Model) handleKey(key string) {
	if m.ctrl == nil {
		return
	}
	switch key {
	case "p":
		m.ctrl.Pause()
	case "r", "c":
		m.ctrl.Resume()
	case "s":
		m.ctrl.RequestSkip()
	case "q", "ctrl+c":
		m.ctrl.RequestStop()
		m.stopping = true
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = math.Min(1, float64(m.done)/float64(m.total))
	}

	state := accentStyle.Render("running")
	switch {
	case m.stopping:
		state = warnStyle.Render("stopping after current step")
	case m.ctrl.Paused():
		state = warnStyle.Render("paused")
	}

	errors := dimStyle.Render(fmt.Sprintf("errors:%d", m.errors))
	if m.errors > 0 {
		errors = errorStyle.Render(fmt.Sprintf("errors:%d", m.errors))
	}

	trial := "-"
	if m.quality > 0 {
		trial = fmt.Sprintf("q%d", m.quality)
		if m.sizeKB > 0 {
			trial += fmt.Sprintf(" → %.1f KB", m.sizeKB)
		}
	}

	lines := []string{
		titleStyle.Render(m.title) + "  " + state,
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", m.done, m.total)) +
			dimStyle.Render(fmt.Sprintf("  written:%d skipped:%d ", m.written, m.skipped)) + errors,
		labelStyle.Render("Current: " + m.current),
		labelStyle.Render("Trial: " + trial),
		labelStyle.Render(fmt.Sprintf("Size: %s → %s", HumanBytes(m.bytesIn), HumanBytes(m.bytesOut))),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", time.Since(m.started).Round(time.Millisecond))),
		barStyle.Render(renderBar(barWidth, ratio)),
		dimStyle.Render("p pause · r resume · s skip · q stop"),
	}

	return strings.Join(lines, "\n")
}

func listenForUpdates(updates <-chan processor.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

// HumanBytes formats n with a binary unit.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle  = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle    = lipgloss.NewStyle().Foreground(ColorSuccess)
	dimStyle    = lipgloss.NewStyle().Foreground(ColorDim)
	accentStyle = lipgloss.NewStyle().Foreground(ColorAccentAlt)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(ColorError)
)

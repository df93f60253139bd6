package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"nativebind/internal/driver"
)

// maxRows bounds the namespaces listed at once; busy ones are listed first.
const maxRows = 16

type progressModel struct {
	title   string
	events  <-chan driver.Event
	spinner spinner.Model
	prog    progress.Model
	items   []*nsItem
	index   map[string]*nsItem
	total   int
	settled int
	width   int
	done    bool
}

// nsItem aggregates the types of one namespace.
type nsItem struct {
	name     string
	total    int
	working  int
	done     int
	excluded int
	failed   int
}

func (it *nsItem) settled() int { return it.done + it.excluded + it.failed }

func (it *nsItem) status() string {
	switch {
	case it.settled() == it.total && it.failed > 0:
		return "error"
	case it.settled() == it.total:
		return "done"
	case it.working > 0 || it.settled() > 0:
		return "building"
	}
	return "queued"
}

type eventMsg driver.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders generation
// progress per namespace. It quits when events is closed.
func NewProgressModel(title string, events <-chan driver.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		index:   make(map[string]*nsItem),
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(driver.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%d/%d types)", m.title, m.settled, m.total)
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	countWidth := 12
	nameWidth := max(m.width-statusWidth-countWidth-6, 20)

	rows := m.visible()
	for _, item := range rows {
		name := item.name
		if name == "" {
			name = "<global>"
		}
		status := item.status()
		statusStyled := styleStatus(status).Render(fmt.Sprintf("%12s", status))
		count := fmt.Sprintf("%d/%d", item.settled(), item.total)
		if item.failed > 0 {
			count += fmt.Sprintf(" (%d failed)", item.failed)
		}
		fmt.Fprintf(&b, "  %s %s  %s\n", statusStyled, pad(truncate(name, nameWidth), nameWidth), count)
	}
	if hidden := len(m.items) - len(rows); hidden > 0 {
		fmt.Fprintf(&b, "  %12s ... %d more namespaces\n", "", hidden)
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

// visible picks the rows to draw: busy namespaces, then failed ones, then
// the rest in name order.
func (m *progressModel) visible() []*nsItem {
	if len(m.items) <= maxRows {
		return m.items
	}
	rank := func(it *nsItem) int {
		switch it.status() {
		case "building":
			return 0
		case "error":
			return 1
		case "queued":
			return 2
		}
		return 3
	}
	rows := slices.Clone(m.items)
	slices.SortStableFunc(rows, func(a, b *nsItem) int { return rank(a) - rank(b) })
	rows = rows[:maxRows]
	slices.SortFunc(rows, func(a, b *nsItem) int { return strings.Compare(a.name, b.name) })
	return rows
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) item(ns string) *nsItem {
	if it, ok := m.index[ns]; ok {
		return it
	}
	it := &nsItem{name: ns}
	m.index[ns] = it
	pos, _ := slices.BinarySearchFunc(m.items, ns, func(a *nsItem, n string) int { return strings.Compare(a.name, n) })
	m.items = slices.Insert(m.items, pos, it)
	return it
}

func (m *progressModel) applyEvent(ev driver.Event) tea.Cmd {
	if ev.Type == "" {
		return nil
	}
	it := m.item(ev.Namespace)
	switch ev.Status {
	case driver.StatusQueued:
		it.total++
		m.total++
		return nil
	case driver.StatusWorking:
		it.working++
		return nil
	case driver.StatusDone:
		it.done++
	case driver.StatusExcluded:
		it.excluded++
	case driver.StatusError:
		it.failed++
	default:
		return nil
	}
	// Types failed ahead of their batch never report working.
	if it.working > 0 {
		it.working--
	}
	m.settled++
	if m.total == 0 {
		return nil
	}
	return m.prog.SetPercent(float64(m.settled) / float64(m.total))
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "building":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func pad(value string, width int) string {
	if w := runewidth.StringWidth(value); w < width {
		return value + strings.Repeat(" ", width-w)
	}
	return value
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	// The tail counts toward width.
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}

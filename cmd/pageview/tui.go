package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/tidwall/gjson"

	"github.com/Sternrassler/pageview/pkg/cache"
	"github.com/Sternrassler/pageview/pkg/window"
)

var (
	colorCyan = lipgloss.Color("14")
	colorRed  = lipgloss.Color("9")
	colorGray = lipgloss.Color("245")
	colorDim  = lipgloss.Color("240")

	styleTitle    = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleActive   = lipgloss.NewStyle().Bold(true).Reverse(true)
	styleLink     = lipgloss.NewStyle().Foreground(colorGray)
	styleEllipsis = lipgloss.NewStyle().Foreground(colorDim)
	styleError    = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	styleHelp     = lipgloss.NewStyle().Foreground(colorDim)
)

// Renderer messages, delivered to the model through the pump.
type (
	pageMsg struct {
		targetID string
		items    []cache.Item
	}
	navMsg struct {
		targetID string
		nav      window.NavBar
	}
	errMsg struct {
		targetID string
		page     int
		err      error
	}
)

// headingRow is the table heading of a tabular target.
type headingRow struct {
	fields []string
}

func (headingRow) ItemKind() cache.Kind { return cache.KindHeading }

// tuiRenderer queues renderer calls for a bubbletea program. Controllers call
// it with their lock held, so it only appends to the queue.
type tuiRenderer struct {
	mu     sync.Mutex
	queue  []tea.Msg
	notify chan struct{}
}

func newTUIRenderer() *tuiRenderer {
	return &tuiRenderer{notify: make(chan struct{}, 1)}
}

func (r *tuiRenderer) push(msg tea.Msg) {
	r.mu.Lock()
	r.queue = append(r.queue, msg)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *tuiRenderer) drain() []tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.queue
	r.queue = nil
	return msgs
}

func (r *tuiRenderer) RenderPage(targetID string, items []cache.Item) {
	r.push(pageMsg{targetID: targetID, items: items})
}

func (r *tuiRenderer) RenderNav(targetID string, nav window.NavBar) {
	r.push(navMsg{targetID: targetID, nav: nav})
}

func (r *tuiRenderer) RenderError(targetID string, page int, err error) {
	r.push(errMsg{targetID: targetID, page: page, err: err})
}

// pump forwards queued messages to send, in order, until done is closed.
func (r *tuiRenderer) pump(done <-chan struct{}, send func(tea.Msg)) {
	for {
		for _, msg := range r.drain() {
			send(msg)
		}
		select {
		case <-done:
			return
		case <-r.notify:
		}
	}
}

// browseModel is the bubbletea model of one rendering target.
type browseModel struct {
	targetID string
	source   string
	fields   []string
	navigate func(page int) tea.Cmd

	items   []cache.Item
	nav     window.NavBar
	page    int
	pending int
	err     error
	height  int
}

func newBrowseModel(targetID, source string, fields []string, items []cache.Item, nav window.NavBar, navigate func(int) tea.Cmd) browseModel {
	return browseModel{
		targetID: targetID,
		source:   source,
		fields:   fields,
		navigate: navigate,
		items:    items,
		nav:      nav,
		page:     1,
		height:   20,
	}
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "right", "l", "n":
			return m.goTo(m.page + 1)
		case "left", "h", "p":
			return m.goTo(m.page - 1)
		case "home", "g":
			return m.goTo(1)
		case "end", "G":
			return m.goTo(m.nav.Total)
		case "r":
			if m.err != nil {
				return m.goTo(m.page)
			}
		}
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-8, 5)
	case pageMsg:
		if msg.targetID == m.targetID {
			m.items = msg.items
			m.err = nil
		}
	case navMsg:
		if msg.targetID == m.targetID {
			m.nav = msg.nav
			m.pending = 0
			if msg.nav.Current > 0 {
				m.page = msg.nav.Current
			}
		}
	case errMsg:
		if msg.targetID == m.targetID {
			m.page = msg.page
			m.pending = 0
			m.err = msg.err
		}
	}
	return m, nil
}

// goTo requests page. Pages outside the nav bar are ignored.
func (m browseModel) goTo(page int) (tea.Model, tea.Cmd) {
	if m.nav.Empty() || page < 1 || page > m.nav.Total {
		return m, nil
	}
	if page == m.page && m.err == nil {
		return m, nil
	}
	m.pending = page
	return m, m.navigate(page)
}

func (m browseModel) View() string {
	var b strings.Builder

	title := fmt.Sprintf("%s · %s", m.targetID, m.source)
	if m.nav.Total > 0 {
		title += fmt.Sprintf(" · page %d/%d", m.page, m.nav.Total)
	}
	b.WriteString(styleTitle.Render(title))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(styleError.Render(fmt.Sprintf("Page %d could not be loaded: %v", m.page, m.err)))
		b.WriteString("\n")
	} else {
		b.WriteString(renderItems(m.items, m.fields, m.height))
	}
	b.WriteString("\n")

	if nav := renderNav(m.nav); nav != "" {
		b.WriteString(nav)
		b.WriteString("\n")
	}

	status := "←/→ page  g/G first/last  q quit"
	if m.err != nil {
		status = "r retry  " + status
	}
	if m.pending > 0 {
		status = fmt.Sprintf("loading page %d…  %s", m.pending, status)
	}
	b.WriteString(styleHelp.Render(status))

	return b.String()
}

// renderNav draws the entries of a nav bar on one line.
func renderNav(nav window.NavBar) string {
	if nav.Empty() {
		return ""
	}
	parts := make([]string, 0, len(nav.Entries))
	for _, e := range nav.Entries {
		switch {
		case e.IsEllipsis:
			parts = append(parts, styleEllipsis.Render(e.Label))
		case e.IsActive:
			parts = append(parts, styleActive.Render(" "+e.Label+" "))
		default:
			parts = append(parts, styleLink.Render(e.Label))
		}
	}
	return strings.Join(parts, " ")
}

// renderItems draws items as a table when fields are given, one line per
// item otherwise.
func renderItems(items []cache.Item, fields []string, limit int) string {
	if len(items) == 0 {
		return styleHelp.Render("(no items)") + "\n"
	}

	if len(fields) > 0 {
		headers := fields
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			if h, ok := item.(headingRow); ok {
				headers = h.fields
				continue
			}
			row := make([]string, len(fields))
			for i, f := range fields {
				row[i] = formatItem(item, f)
			}
			rows = append(rows, row)
		}
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
			Headers(headers...).
			Rows(rows...)
		return t.Render() + "\n"
	}

	var b strings.Builder
	for i, item := range items {
		if i == limit {
			b.WriteString(styleHelp.Render(fmt.Sprintf("… %d more", len(items)-limit)))
			b.WriteString("\n")
			break
		}
		b.WriteString(formatItem(item, ""))
		b.WriteString("\n")
	}
	return b.String()
}

// formatItem returns the display text of item. For JSON items a non-empty
// path selects a value with gjson.
func formatItem(item cache.Item, path string) string {
	switch v := item.(type) {
	case json.RawMessage:
		if path != "" {
			return gjson.GetBytes(v, path).String()
		}
		return gjson.GetBytes(v, "@ugly").Raw
	case headingRow:
		return strings.Join(v.fields, " | ")
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

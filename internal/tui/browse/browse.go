// ABOUTME: Interactive paginated browser for one content collection
// ABOUTME: Bubble Tea model around a bubbles table that fetches pages on demand

package browse

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/woragis/woragis-posts-frontend/apierror"
	"github.com/woragis/woragis-posts-frontend/content"
	"github.com/woragis/woragis-posts-frontend/internal/tui/styles"
	"github.com/woragis/woragis-posts-frontend/resource"
	"github.com/woragis/woragis-posts-frontend/transport"
)

const (
	// chromeHeight is the number of lines around the table: title, footer, help.
	chromeHeight = 6
	// headerLines is the height of the bordered table header.
	headerLines = 2
)

// Fetcher loads one page of records.
type Fetcher func(ctx context.Context, page, limit int) (*resource.Page[content.Record], error)

type pageMsg struct {
	page   int
	result *resource.Page[content.Record]
}

type errMsg struct{ err error }

// Columns are the fields shown for every collection.
func Columns() []table.Column {
	return []table.Column{
		{Title: "ID", Width: 36},
		{Title: "Title", Width: 40},
		{Title: "Status", Width: 10},
		{Title: "Updated", Width: 20},
	}
}

// Rows converts records into table rows.
func Rows(records []content.Record) []table.Row {
	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, table.Row{r.Text("id"), r.Text("title"), r.Text("status"), r.Text("updatedAt")})
	}
	return rows
}

// NewTable builds a styled table over records.
func NewTable(records []content.Record, height int, focused bool) table.Model {
	t := table.New(
		table.WithColumns(Columns()),
		table.WithRows(Rows(records)),
		table.WithFocused(focused),
		table.WithHeight(height),
	)
	t.SetStyles(styles.Table())
	return t
}

// Render draws records as a static table.
func Render(records []content.Record) string {
	return NewTable(records, len(records)+headerLines, false).View()
}

// Model is the browser state.
type Model struct {
	ctx     context.Context
	title   string
	fetch   Fetcher
	limit   int
	page    int
	meta    transport.PageMeta
	table   table.Model
	loading bool
	err     error
}

// New creates a browser for title, loading limit records per page.
func New(ctx context.Context, title string, fetch Fetcher, limit int) Model {
	if limit <= 0 {
		limit = resource.DefaultLimit
	}
	return Model{
		ctx:     ctx,
		title:   title,
		fetch:   fetch,
		limit:   limit,
		page:    1,
		table:   NewTable(nil, limit+headerLines, true),
		loading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return m.load(1)
}

func (m Model) load(page int) tea.Cmd {
	ctx, fetch, limit := m.ctx, m.fetch, m.limit
	return func() tea.Msg {
		result, err := fetch(ctx, page, limit)
		if err != nil {
			return errMsg{err: err}
		}
		return pageMsg{page: page, result: result}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pageMsg:
		m.loading = false
		m.err = nil
		m.page = msg.page
		m.meta = msg.result.Meta
		m.table.SetRows(Rows(msg.result.Items))
		m.table.GotoTop()
		return m, nil

	case errMsg:
		m.loading = false
		m.err = msg.err
		return m, nil

	case tea.WindowSizeMsg:
		if h := msg.Height - chromeHeight; h > 1 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "n", "right":
			if !m.loading && m.page < m.meta.TotalPages {
				m.loading = true
				return m, m.load(m.page + 1)
			}
			return m, nil
		case "p", "left":
			if !m.loading && m.page > 1 {
				m.loading = true
				return m, m.load(m.page - 1)
			}
			return m, nil
		case "r":
			m.loading = true
			return m, m.load(m.page)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.StatusCritical.Render("Error: " + apierror.Message(m.err)))
	case m.loading:
		b.WriteString(styles.Subtitle.Render("Loading..."))
	default:
		b.WriteString(styles.Subtitle.Render(fmt.Sprintf("Page %d of %d · %d total", m.page, max(m.meta.TotalPages, 1), m.meta.Total)))
	}

	b.WriteString(styles.Help.Render("\n↑/↓ select · n/p page · r reload · q quit"))
	return b.String()
}

// Selected returns the ID of the highlighted record, if any.
func (m Model) Selected() string {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

// Page returns the current page number.
func (m Model) Page() int {
	return m.page
}

// Err returns the last load error.
func (m Model) Err() error {
	return m.err
}

// Run starts the browser full screen and blocks until the user quits.
func Run(ctx context.Context, title string, fetch Fetcher, limit int) error {
	_, err := tea.NewProgram(New(ctx, title, fetch, limit), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

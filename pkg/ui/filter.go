package ui

import (
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/stellenberg/opsglass/pkg/model"
)

// FilterModal collects a drill-down filter from the user. All fields are
// optional; leaving one empty broadens the match.
type FilterModal struct {
	theme Theme
	form  *huh.Form

	location string
	month    string
	year     string

	width  int
	height int
}

// NewFilterModal builds the filter form.
func NewFilterModal(theme Theme) FilterModal {
	m := FilterModal{theme: theme}
	m.form = m.buildForm()
	return m
}

func (m *FilterModal) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Location").
				Description("substring match, e.g. 深圳宝安区宝城").
				Value(&m.location),
			huh.NewInput().
				Title("Month").
				Description("1-12, exact match").
				Value(&m.month).
				Validate(validateMonth),
			huh.NewInput().
				Title("Year").
				Description("four digits, exact match").
				Value(&m.year).
				Validate(validateYear),
		),
	).WithTheme(huh.ThemeDracula()).WithWidth(52).WithShowHelp(true)
}

func validateMonth(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 12 {
		return errInvalidMonth
	}
	return nil
}

func validateYear(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err != nil || n < 1000 || n > 9999 {
		return errInvalidYear
	}
	return nil
}

var (
	errInvalidMonth = validationError("month must be 1-12")
	errInvalidYear  = validationError("year must be four digits")
)

type validationError string

func (e validationError) Error() string { return string(e) }

// Prefill seeds the form from an existing query (reopening the filter
// from an overlay keeps the current filter as the starting point).
func (m *FilterModal) Prefill(q model.DrillDownQuery) {
	m.location = q.Location
	m.month = q.Month
	m.year = q.Year
	m.form = m.buildForm()
}

// SetSize sets the modal dimensions.
func (m *FilterModal) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Init starts the embedded form.
func (m *FilterModal) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards a message to the form. done is true when the form was
// submitted or aborted; query is non-nil only on submit.
func (m *FilterModal) Update(msg tea.Msg) (done bool, query *model.DrillDownQuery, cmd tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		return true, nil, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		q := model.DrillDownQuery{
			Location: strings.TrimSpace(m.location),
			Month:    strings.TrimSpace(m.month),
			Year:     strings.TrimSpace(m.year),
		}
		return true, &q, cmd
	case huh.StateAborted:
		return true, nil, cmd
	}
	return false, nil, cmd
}

// View renders the form centered over a blank backdrop.
func (m *FilterModal) View() string {
	content := m.theme.PrimaryBold.Render("Filter records") + "\n\n" + m.form.View()

	box := m.theme.OverlayBox.Render(content)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/weaver/il"
	"github.com/wippyai/weaver/ilasm"
	"github.com/wippyai/weaver/weave"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	methodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	handlerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateList modelState = iota
	stateFilter
	stateDetail
)

type methodInfo struct {
	typ     string
	index   int // position in the type's method list
	name    string
	handler string // empty when the method does not qualify
}

type interactiveModel struct {
	err       error
	weaveErr  error
	original  *il.Module
	woven     *il.Module
	filename  string
	cfg       weave.Config
	methods   []methodInfo
	visible   []int
	filter    textinput.Model
	view      viewport.Model
	width     int
	height    int
	selected  int
	showWoven bool
	loaded    bool
	state     modelState
}

type loadedMsg struct {
	err      error
	weaveErr error
	original *il.Module
	woven    *il.Module
	methods  []methodInfo
}

func newInteractiveModel(filename string, cfg weave.Config) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter methods"
	ti.Width = 40
	return &interactiveModel{
		filename: filename,
		cfg:      cfg,
		filter:   ti,
		view:     viewport.New(80, 20),
		state:    stateList,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

// loadModule decodes the module twice: once to browse and once to weave
// in memory for the side-by-side preview.
func (m *interactiveModel) loadModule() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	original, err := il.ParseModule(data)
	if err != nil {
		return loadedMsg{err: err}
	}

	cfg := m.cfg
	cfg.Resolver = il.NewResolver(append(append([]string(nil), cfg.SearchPaths...), filepath.Dir(m.filename))...)

	handlers := make(map[string]string)
	targets, _, listErr := weave.List(original, cfg)
	for _, t := range targets {
		handlers[t.Method] = t.Handler
	}

	var methods []methodInfo
	for _, t := range original.Types {
		for i, meth := range t.Methods {
			methods = append(methods, methodInfo{
				typ:     t.FullName(),
				index:   i,
				name:    meth.FullName(),
				handler: handlers[meth.FullName()],
			})
		}
	}

	msg := loadedMsg{original: original, methods: methods, weaveErr: listErr}
	if listErr != nil {
		return msg
	}
	woven, err := il.ParseModule(data)
	if err != nil {
		return loadedMsg{err: err}
	}
	if _, err := weave.Apply(woven, cfg); err != nil {
		msg.weaveErr = err
		return msg
	}
	msg.woven = woven
	return msg
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-4, 1)

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.original = msg.original
		m.woven = msg.woven
		m.weaveErr = msg.weaveErr
		m.methods = msg.methods
		m.loaded = true
		m.applyFilter()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.state {
		case stateFilter:
			switch msg.String() {
			case "enter", "esc":
				m.filter.Blur()
				m.state = stateList
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd

		case stateList:
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "up", "k":
				if m.selected > 0 {
					m.selected--
				}
			case "down", "j":
				if m.selected < len(m.visible)-1 {
					m.selected++
				}
			case "/":
				m.state = stateFilter
				return m, m.filter.Focus()
			case "enter":
				if len(m.visible) > 0 {
					m.state = stateDetail
					m.showWoven = false
					m.refreshDetail()
				}
			}

		case stateDetail:
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "esc", "backspace":
				m.state = stateList
				return m, nil
			case "w", "tab":
				m.showWoven = !m.showWoven
				m.refreshDetail()
				return m, nil
			}
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *interactiveModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, meth := range m.methods {
		if q == "" || strings.Contains(strings.ToLower(meth.name), q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *interactiveModel) current() methodInfo {
	return m.methods[m.visible[m.selected]]
}

func (m *interactiveModel) refreshDetail() {
	info := m.current()
	mod := m.original
	if m.showWoven {
		if m.woven == nil {
			m.view.SetContent(errorStyle.Render(fmt.Sprintf("Weaving failed: %v", m.weaveErr)))
			return
		}
		mod = m.woven
	}
	meth := mod.Type(info.typ).Methods[info.index]
	m.view.SetContent(ilasm.DisassembleMethod(meth))
	m.view.GotoTop()
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
	}
	if !m.loaded {
		return "Loading module..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Weaver"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n")

	switch m.state {
	case stateList, stateFilter:
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
		}
		b.WriteString("\n")
		if m.weaveErr != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Weaving would fail: %v", m.weaveErr)))
			b.WriteString("\n")
		}
		for i, idx := range m.visible {
			line := m.formatMethod(m.methods[idx])
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + m.methods[idx].name))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter show • / filter • q quit"))

	case stateDetail:
		info := m.current()
		which := "original"
		if m.showWoven {
			which = "woven"
		}
		b.WriteString(fmt.Sprintf("%s (%s)\n", methodStyle.Render(info.name), which))
		b.WriteString(m.view.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("w toggle woven • ↑/↓ scroll • esc back • q quit"))
	}
	return b.String()
}

func (m *interactiveModel) formatMethod(info methodInfo) string {
	s := methodStyle.Render(info.name)
	if info.handler != "" {
		s += "  <- " + handlerStyle.Render(info.handler)
	}
	return s
}

func runInteractive(filename string, cfg weave.Config) error {
	p := tea.NewProgram(newInteractiveModel(filename, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

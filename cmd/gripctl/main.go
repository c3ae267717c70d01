// Gripctl provides a TUI to operate one or more grippers: grip with a
// selectable force, release, move to a relative position, stop, and
// the maintenance commands, with status and position polled once per
// second.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rwirdemann/gripgate"
)

const (
	focusGripperList = iota
	focusPositionInput
)

const ratioLeftPanelWidth = 0.6

var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder())

var activeStyle = baseStyle.
	BorderForeground(lipgloss.Color("white"))

var passiveStyle = baseStyle.
	BorderForeground(lipgloss.Color("240"))

var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
	Light: "#909090",
	Dark:  "#626262",
}).Padding(0, 1)

// gripperPort is the call surface the cockpit needs from a gripper.
// Satisfied by *gripgate.Gripper.
type gripperPort interface {
	Grip(force int) error
	Release() error
	SetPosition(percent int) error
	Stop() error
	FastStop() error
	Acknowledge() error
	Reference() error
	Status() (gripgate.Status, error)
	Success() (bool, error)
	Position() (int, error)
	Close() error
}

type gripper struct {
	gripgate.GripperConfig
	port gripperPort
}

var grippers []gripper

func main() {
	configPath := flag.String("config", "config", "config base directory")
	help := flag.Bool("help", false, "print usage")
	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	config, err := gripgate.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	for _, gc := range config.Grippers {
		timeout := time.Duration(gc.TimeoutMs) * time.Millisecond
		if gc.TimeoutMs == 0 {
			timeout = gripgate.DefaultTimeout
		}
		g, err := gripgate.NewGripperWithTimeout(gc.Host, timeout)
		if err != nil {
			log.Fatal(err)
		}
		grippers = append(grippers, gripper{GripperConfig: gc, port: g})
	}
	if len(grippers) == 0 {
		log.Fatal("no grippers configured")
	}

	defer func() {
		for _, g := range grippers {
			_ = g.port.Close()
		}
	}()

	m := newModel()

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Println("Error running program:", err)
		os.Exit(1)
	}
}

type model struct {
	focus           int
	gripperTable    table.Model
	positionInput   textinput.Model
	logger          *logger
	fullHeight      int
	fullWidth       int
	leftPanelWidth  int
	rightPanelWidth int
	logPanelHeight  int
	editPanelHeight int
}

func newModel() model {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(true)

	columns := []table.Column{
		{Title: "Name", Width: 12},
		{Title: "Host", Width: 20},
		{Title: "Status", Width: 20},
		{Title: "Success", Width: 7},
		{Title: "Position", Width: 8},
	}
	gripperTable := table.New(
		table.WithColumns(columns),
		table.WithRows(grippersToTableRows()),
		table.WithFocused(true),
	)
	gripperTable.SetStyles(s)

	return model{
		gripperTable:  gripperTable,
		positionInput: textinput.New(),
		focus:         focusGripperList,
		logger:        &logger{maxItems: 10},
	}
}

func grippersToTableRows() []table.Row {
	var rows []table.Row
	for _, g := range grippers {
		rows = append(rows, buildTableRow(g))
	}
	return rows
}

func buildTableRow(g gripper) table.Row {
	status, err := g.port.Status()
	if err != nil {
		return table.Row{g.Name, g.Host, "unreachable", "-", "-"}
	}
	success := "-"
	if ok, err := g.port.Success(); err == nil {
		success = strconv.FormatBool(ok)
	}
	position := "-"
	if p, err := g.port.Position(); err == nil {
		position = fmt.Sprintf("%d%%", p)
	}
	return table.Row{g.Name, g.Host, status.String(), success, position}
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second*1, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd { return tickCmd() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmds []tea.Cmd
		cmd  tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.fullHeight = msg.Height
		m.fullWidth = msg.Width

		m.leftPanelWidth = int(float32(m.fullWidth) * ratioLeftPanelWidth)
		m.rightPanelWidth = m.fullWidth - m.leftPanelWidth - 4

		m.editPanelHeight = (m.fullHeight - 5) / 2
		m.logPanelHeight = (m.fullHeight - 5) / 2
		if m.fullHeight%2 != 0 {
			m.editPanelHeight -= 1
		}

		m.gripperTable.SetHeight(m.fullHeight - 4)
		m.logger.maxItems = m.logPanelHeight - 2

		return m, nil

	case tea.KeyMsg:
		switch m.focus {
		case focusGripperList:
			m.gripperTable, cmd = m.gripperTable.Update(msg)
			cmds = append(cmds, cmd)

			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "1", "2", "3", "4":
				force, _ := strconv.Atoi(msg.String())
				m.do(fmt.Sprintf("grip force %d", force), func(p gripperPort) error { return p.Grip(force) })
			case "r":
				m.do("release", gripperPort.Release)
			case "s":
				m.do("stop", gripperPort.Stop)
			case "f":
				m.do("fast stop", gripperPort.FastStop)
			case "a":
				m.do("acknowledge", gripperPort.Acknowledge)
			case "n":
				m.do("reference", gripperPort.Reference)
			case "enter", "p":
				m.positionInput.SetValue("")
				m.positionInput.Focus()
				m.gripperTable.Blur()
				m.focus = focusPositionInput
			}

		case focusPositionInput:
			m.positionInput, cmd = m.positionInput.Update(msg)
			cmds = append(cmds, cmd)

			switch msg.String() {
			case "esc":
				m.positionInput.Blur()
				m.gripperTable.Focus()
				m.focus = focusGripperList
			case "enter":
				percent, err := strconv.Atoi(strings.TrimSpace(m.positionInput.Value()))
				if err != nil {
					m.logger.Append(fmt.Sprintf("%s not a number: %v", timestamp(), err))
				} else {
					m.do(fmt.Sprintf("move to %d%%", percent), func(p gripperPort) error { return p.SetPosition(percent) })
				}
				m.positionInput.Blur()
				m.gripperTable.Focus()
				m.focus = focusGripperList
			}
		}
	case tickMsg:
		m.gripperTable.SetRows(grippersToTableRows())
		cmds = append(cmds, tickCmd())
	}

	return m, tea.Batch(cmds...)
}

// do runs a gripper action against the selected gripper and logs the
// outcome.
func (m model) do(action string, f func(gripperPort) error) {
	g := grippers[m.gripperTable.Cursor()]
	if err := f(g.port); err != nil {
		m.logger.Append(fmt.Sprintf("%s %s: %s failed: %v", timestamp(), g.Name, action, err))
		return
	}
	m.logger.Append(fmt.Sprintf("%s %s: %s", timestamp(), g.Name, action))
}

func timestamp() string {
	return time.Now().Format(time.DateTime)
}

func (m model) View() string {
	gripperTable := m.renderGripperTable()
	commandForm := m.renderCommandForm()
	logPanel := m.renderLogPanel()
	panels := lipgloss.JoinVertical(lipgloss.Top, commandForm, logPanel)
	return lipgloss.JoinHorizontal(lipgloss.Top, gripperTable, panels)
}

func (m model) renderGripperTable() string {
	var style lipgloss.Style
	if m.focus == focusGripperList {
		style = activeStyle
	} else {
		style = passiveStyle
	}
	style = style.Height(m.fullHeight - 4).Width(m.leftPanelWidth)
	help := helpStyle.Render("1-4 grip • r release • s stop • p position • f fast stop • a ack • n reference • q quit")
	return style.Render(m.gripperTable.View()) + "\n  " + m.gripperTable.HelpView() + help + "\n"
}

func (m model) renderCommandForm() string {
	var style lipgloss.Style
	if m.focus == focusPositionInput {
		style = activeStyle
	} else {
		style = passiveStyle
	}

	s := ""
	if m.focus == focusPositionInput {
		g := grippers[m.gripperTable.Cursor()]
		s = fmt.Sprintf("\nGripper : %s\n", g.Name)
		s = fmt.Sprintf("%sRange   : %d..%d%%\n\n", s, gripgate.PositionMin, gripgate.PositionMax)
		m.positionInput.Prompt = "Percent : "
		s += m.positionInput.View()
	}

	style = style.Border(generateBorder("Move To Position", m.rightPanelWidth))
	return lipgloss.JoinVertical(
		lipgloss.Top,
		style.Padding(0, 1).Height(m.editPanelHeight).Width(m.rightPanelWidth).Render(s),
		helpStyle.Render("enter - move • esc - discard"))
}

func (m model) renderLogPanel() string {
	style := passiveStyle.Border(generateBorder("Log", m.rightPanelWidth))
	return style.Padding(0, 1).Height(m.logPanelHeight).Width(m.rightPanelWidth).Render(strings.Join(m.logger.items, "\n"))
}

func generateBorder(title string, width int) lipgloss.Border {
	if width < 0 {
		return lipgloss.RoundedBorder()
	}
	border := lipgloss.RoundedBorder()
	border.Top = border.Top + border.MiddleRight + " " + title + " " + border.MiddleLeft + strings.Repeat(border.Top, width)
	return border
}

type logger struct {
	items    []string
	maxItems int
}

func (l *logger) Append(s string) {
	l.items = append(l.items, s)
	if l.maxItems > 0 && len(l.items) > l.maxItems {
		l.items = l.items[1:]
	}
}

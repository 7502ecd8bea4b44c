// Command pokerctl is a read-only operator dashboard: it samples system
// memory and its own process's resource footprint and lets an operator look up a
// player's wallet balance directly against the sqlite store, without
// going through the lobby/room-control FIFOs.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/holdempoker/tableserver/internal/health"
	"github.com/holdempoker/tableserver/internal/store"
)

var cli struct {
	DBPath string `short:"d" help:"Path to the server's sqlite database" default:"poker.db"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("pokerctl"),
		kong.Description("Operator dashboard for the table server"),
		kong.UsageOnError(),
	)

	st, err := store.Open(cli.DBPath)
	if err != nil {
		fmt.Printf("error opening %q: %v\n", cli.DBPath, err)
		return
	}
	defer st.Close()

	sampler, err := health.NewSampler()
	if err != nil {
		fmt.Printf("warning: process sampling unavailable: %v\n", err)
	}

	m := newModel(st, sampler)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Printf("dashboard error: %v\n", err)
	}
}

const tickInterval = time.Second

type tickMsg time.Time

type lookupResultMsg struct {
	playerID string
	balance  int64
	err      error
}

// model is the dashboard's Bubble Tea state: a resource snapshot refreshed
// on every tick, and a single free-text field for a player-ID wallet
// lookup (there's no bubbles/textinput in this module's dependency set,
// so the field is hand-rolled from raw KeyMsg runes).
type model struct {
	store   store.Store
	sampler *health.Sampler

	snapshot health.Snapshot
	lookup   string
	result   string
	quitting bool

	width int
}

func newModel(st store.Store, sampler *health.Sampler) *model {
	return &model{store: st, sampler: sampler}
}

func (m *model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.snapshot = m.sampler.Read()
		return m, tick()

	case lookupResultMsg:
		if msg.err != nil {
			m.result = ErrorStyle.Render(fmt.Sprintf("%s: %v", msg.playerID, msg.err))
		} else {
			m.result = SuccessStyle.Render(fmt.Sprintf("%s: %d chips", msg.playerID, msg.balance))
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			id := strings.TrimSpace(m.lookup)
			if id == "" {
				return m, nil
			}
			m.lookup = ""
			return m, m.lookupCmd(id)
		case "backspace":
			if len(m.lookup) > 0 {
				m.lookup = m.lookup[:len(m.lookup)-1]
			}
		default:
			if len(msg.Runes) > 0 {
				m.lookup += msg.String()
			}
		}
	}
	return m, nil
}

func (m *model) lookupCmd(playerID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		balance, err := m.store.WalletBalance(ctx, playerID)
		return lookupResultMsg{playerID: playerID, balance: balance, err: err}
	}
}

func (m *model) View() string {
	if m.quitting {
		return ""
	}

	header := HeaderStyle.Render(" pokerctl — table server dashboard ")

	healthBlock := HandInfoStyle.Render("process health") + "\n" +
		fmt.Sprintf("  system memory : %s free / %s total\n",
			formatBytes(m.snapshot.FreeSystemMemory), formatBytes(m.snapshot.TotalSystemMemory)) +
		fmt.Sprintf("  process rss   : %s\n", formatBytes(m.snapshot.ProcessRSSBytes)) +
		fmt.Sprintf("  process cpu   : %.1fs\n", m.snapshot.ProcessCPUSeconds) +
		fmt.Sprintf("  open fds      : %d\n", m.snapshot.OpenFDs) +
		fmt.Sprintf("  advised rooms : %d more", m.snapshot.AdvisedMaxRooms)

	lookup := ActionsStyle.Render("wallet lookup") + "\n" +
		InfoStyle.Render("  type a player id, enter to look up, esc to quit") + "\n" +
		"  > " + m.lookup + "█"

	body := strings.Join([]string{header, "", healthBlock, "", lookup}, "\n")
	if m.result != "" {
		body += "\n\n  " + m.result
	}
	return body
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

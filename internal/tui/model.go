package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dicewire/dicewire/internal/ble"
	"github.com/dicewire/dicewire/internal/config"
	"github.com/dicewire/dicewire/pixel"
	"github.com/dicewire/dicewire/pixel/protocol"
)

const statsInterval = 15 * time.Second

type phase int

const (
	phaseScanning phase = iota
	phaseConnecting
	phaseReady
	phaseLost
	phaseFailed
)

// Model is the bubbletea model for the watch view.
type Model struct {
	dieName     string
	scanTimeout time.Duration

	phase phase
	die   *pixel.Pixel
	event <-chan pixel.Event
	unsub func()

	info     *protocol.IAmADie
	lastRoll *protocol.RollState
	battery  batteryGauge
	rssi     *protocol.Rssi
	rolls    int
	err      error

	keys     KeyMap
	styles   Styles
	help     help.Model
	spinner  spinner.Model
	showHelp bool
	width    int
}

// NewModel builds the watch model. dieName may be empty to take the
// first die found.
func NewModel(dieName string, scanTimeout time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		dieName:     dieName,
		scanTimeout: scanTimeout,
		keys:        DefaultKeyMap(),
		styles:      DefaultStyles(),
		help:        help.New(),
		spinner:     sp,
		battery:     newBatteryGauge(),
	}
}

// --- Messages ---

type dieFoundMsg struct {
	link *ble.Link
	err  error
}

type connectDoneMsg struct {
	err error
}

type dieEventMsg struct {
	event pixel.Event
	ok    bool
}

type statsMsg struct {
	battery *protocol.BatteryLevel
	rssi    *protocol.Rssi
}

type statsTickMsg time.Time

type blinkDoneMsg struct {
	err error
}

// --- Commands ---

func (m Model) findDie() tea.Cmd {
	name, timeout := m.dieName, m.scanTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		link, err := ble.FindDie(ctx, name)
		return dieFoundMsg{link: link, err: err}
	}
}

func connectDie(p *pixel.Pixel) tea.Cmd {
	return func() tea.Msg {
		// Auto-reconnect keeps the watch alive across link drops.
		return connectDoneMsg{err: p.Connect(context.Background(), true)}
	}
}

func waitForEvent(ch <-chan pixel.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		return dieEventMsg{event: ev, ok: ok}
	}
}

func fetchStats(p *pixel.Pixel) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var msg statsMsg
		if bl, err := p.QueryBatteryLevel(ctx); err == nil {
			msg.battery = &bl
		}
		if rssi, err := p.QueryRssi(ctx); err == nil {
			msg.rssi = &rssi
		}
		return msg
	}
}

func tickStats() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

func blinkDie(p *pixel.Pixel) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return blinkDoneMsg{err: p.Blink(ctx, 2, 0x0000FF, 2*time.Second, 0)}
	}
}

// --- tea.Model ---

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.findDie())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case dieFoundMsg:
		if msg.err != nil {
			m.phase = phaseFailed
			m.err = msg.err
			return m, nil
		}
		m.die = pixel.New(msg.link, pixel.WithLogger(config.NewLogger()))
		m.event, m.unsub = m.die.Events()
		m.phase = phaseConnecting
		return m, tea.Batch(connectDie(m.die), waitForEvent(m.event))

	case connectDoneMsg:
		if msg.err != nil {
			m.phase = phaseFailed
			m.err = msg.err
		}
		return m, nil

	case dieEventMsg:
		if !msg.ok {
			return m, nil
		}
		return m.handleDieEvent(msg.event)

	case statsMsg:
		if msg.battery != nil {
			m.battery.set(float64(msg.battery.Level), msg.battery.Voltage, msg.battery.Charging)
		}
		if msg.rssi != nil {
			m.rssi = msg.rssi
		}
		return m, tickStats()

	case statsTickMsg:
		if m.phase == phaseReady {
			return m, fetchStats(m.die)
		}
		return m, tickStats()

	case blinkDoneMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleDieEvent(ev pixel.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForEvent(m.event)}

	switch ev.Kind {
	case pixel.EventStatusChanged:
		if ev.Status == pixel.StatusReady {
			m.phase = phaseReady
			m.err = nil
			m.info = m.die.Info()
			cmds = append(cmds, fetchStats(m.die))
		}
	case pixel.EventDisconnected:
		if m.phase == phaseReady {
			m.phase = phaseLost
		}
	case pixel.EventConnectFailed:
		m.phase = phaseFailed
		m.err = ev.Err
	case pixel.EventRoll:
		roll := ev.Roll
		m.lastRoll = &roll
		if roll.State == protocol.RollOnFace {
			m.rolls++
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.unsub != nil {
			m.unsub()
		}
		if m.die != nil {
			_ = m.die.Disconnect()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		if m.phase == phaseReady {
			return m, fetchStats(m.die)
		}
	case key.Matches(msg, m.keys.Blink):
		if m.phase == phaseReady {
			return m, blinkDie(m.die)
		}
	}
	return m, nil
}

func (m Model) View() string {
	s := m.styles
	out := s.Title.Render("dicewire watch") + "\n\n"

	switch m.phase {
	case phaseScanning:
		target := "any die"
		if m.dieName != "" {
			target = m.dieName
		}
		out += fmt.Sprintf("%s Scanning for %s...\n", m.spinner.View(), target)
	case phaseConnecting:
		out += fmt.Sprintf("%s Connecting to %s...\n", m.spinner.View(), m.die.Name())
	case phaseFailed:
		out += s.Error.Render(fmt.Sprintf("Connection failed: %v", m.err)) + "\n"
	case phaseLost:
		out += s.StatusOffline.Render("Link lost") + " " +
			s.Muted.Render("reconnecting...") + "\n"
	case phaseReady:
		out += m.readyView()
	}

	if m.showHelp {
		out += s.Help.Render(m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		out += s.Help.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return s.App.Render(out)
}

func (m Model) readyView() string {
	s := m.styles
	out := s.StatusOnline.Render("● "+m.die.Name()) + "\n"

	face := "?"
	state := "waiting for a roll"
	if m.lastRoll != nil {
		state = m.lastRoll.State.String()
		if m.lastRoll.State == protocol.RollOnFace {
			face = fmt.Sprintf("%d", m.lastRoll.Face())
		}
	}
	out += s.Face.Render(face) + "\n"
	out += s.RollState.Render(state) + "\n\n"

	out += s.Label.Render("Battery") + m.battery.View() + "\n"
	if m.rssi != nil {
		out += s.Label.Render("Signal") + s.Value.Render(fmt.Sprintf("%d", m.rssi.Value)) + "\n"
	}
	if m.info != nil {
		out += s.Label.Render("Firmware") + s.Value.Render(m.info.Version) + "\n"
		out += s.Label.Render("Pixel ID") + s.Value.Render(fmt.Sprintf("%08x", m.info.PixelID)) + "\n"
	}
	out += s.Label.Render("Rolls") + s.Value.Render(fmt.Sprintf("%d", m.rolls)) + "\n"
	if m.err != nil {
		out += s.Error.Render(fmt.Sprintf("last error: %v", m.err)) + "\n"
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lanikai/alohacap"
)

const refreshInterval = 500 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

type tickMsg time.Time

type dashboard struct {
	p     *alohacap.Provider
	input string
	start time.Time

	stats  alohacap.Stats
	prev   alohacap.Stats
	prevAt time.Time
	fps    float64
	live   bool
}

func newDashboard(p *alohacap.Provider, input string) dashboard {
	now := time.Now()
	if input == "" {
		input = "(first device)"
	}
	return dashboard{p: p, input: input, start: now, prevAt: now, live: true}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (d dashboard) Init() tea.Cmd {
	return tick()
}

func (d dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return d, tea.Quit
		}
	case tickMsg:
		now := time.Time(msg)
		d.stats = d.p.Stats()
		if dt := now.Sub(d.prevAt).Seconds(); dt > 0 {
			d.fps = float64(d.stats.Pushed-d.prev.Pushed) / dt
		}
		d.prev, d.prevAt = d.stats, now
		d.live = d.p.IsStarted()
		return d, tick()
	}
	return d, nil
}

func (d dashboard) View() string {
	row := func(label string, value interface{}) string {
		return labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value))
	}

	state := valueStyle.Render("capturing")
	if !d.live {
		state = warnStyle.Render("stopped")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("alohacap") + "  " + d.input + "\n\n")
	b.WriteString(labelStyle.Render("state") + state + "\n")
	b.WriteString(row("session", d.stats.Session[:8]) + "\n")
	b.WriteString(row("uptime", time.Since(d.start).Round(time.Second)) + "\n")
	b.WriteString(row("rate", fmt.Sprintf("%.1f fps", d.fps)) + "\n")
	b.WriteString(row("delivered", d.stats.Pushed) + "\n")
	b.WriteString(row("grabbed", d.stats.Grabbed) + "\n")
	b.WriteString(row("consumed", d.stats.Consumed) + "\n")

	dropped := row("dropped", d.stats.Dropped)
	if d.stats.Dropped > 0 {
		dropped = labelStyle.Render("dropped") + warnStyle.Render(fmt.Sprint(d.stats.Dropped))
	}
	b.WriteString(dropped + "\n")
	b.WriteString(row("evictions", d.stats.Evictions) + "\n")
	b.WriteString(row("unconverted", d.stats.ConversionFailures))

	return boxStyle.Render(b.String()) + "\n" + hintStyle.Render("q to quit") + "\n"
}

// runDashboard shows live statistics until the user quits or ctx is done.
func runDashboard(ctx context.Context, p *alohacap.Provider) error {
	d := newDashboard(p, flagInput)
	d.stats = p.Stats()
	_, err := tea.NewProgram(d, tea.WithContext(ctx)).Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

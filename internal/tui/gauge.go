package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
)

// batteryGauge renders the battery charge as a bar.
type batteryGauge struct {
	bar      progress.Model
	level    float64
	voltage  float32
	charging bool
	known    bool
}

func newBatteryGauge() batteryGauge {
	return batteryGauge{
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(24),
			progress.WithoutPercentage(),
		),
	}
}

func (g *batteryGauge) set(level float64, voltage float32, charging bool) {
	g.level = level
	g.voltage = voltage
	g.charging = charging
	g.known = true
}

// View renders the gauge, or a placeholder before the first reading.
func (g batteryGauge) View() string {
	if !g.known {
		return "—"
	}
	suffix := fmt.Sprintf(" %3.0f%% (%.2fV)", g.level*100, g.voltage)
	if g.charging {
		suffix += " ⚡"
	}
	return g.bar.ViewAs(g.level) + suffix
}

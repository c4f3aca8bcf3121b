package tui

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the live watch view: scan for the die, connect, then
// stream rolls and die state until quit.
func Run(dieName string, scanTimeout time.Duration) error {
	m := NewModel(dieName, scanTimeout)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		return err
	}

	return nil
}

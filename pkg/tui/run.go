package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teslashibe/recycleeye/pkg/app"
)

// Run attaches a terminal UI to orch and blocks until the user quits or ctx
// is done.
func Run(ctx context.Context, orch *app.App) error {
	sink := NewSink()
	remove := orch.AddSink(sink)
	defer remove()

	p := tea.NewProgram(NewModel(ctx, orch, sink.Updates()),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

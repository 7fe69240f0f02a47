// Package tui is the interactive two-panel view over a controller.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tasklist-cli/internal/controller"
	"tasklist-cli/internal/eventloop"
	"tasklist-cli/internal/model"
	"tasklist-cli/internal/remote"
)

type Options struct {
	Logger    *slog.Logger
	Selection controller.SelectionPolicy
	// ProgramOptions are appended to the defaults (alt screen, ctx).
	ProgramOptions []tea.ProgramOption
}

// Run shows the TUI until the user quits or ctx is cancelled. The store stays
// open; the caller closes it.
func Run(ctx context.Context, store remote.Store, opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()
	applyGlyphPreference()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := eventloop.New()
	go func() { _ = loop.Run(ctx) }()
	defer loop.Stop()

	var p *tea.Program
	send := func(msg tea.Msg) { p.Send(msg) }

	m := newAppModel(ctx, loop.Post, func(err error) { send(errMsg{err}) })
	popts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts.ProgramOptions...)
	p = tea.NewProgram(m, popts...)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run()
		done <- err
	}()

	ctrl, err := controller.New(ctx, store, loop, controller.Config{
		Listener:  func(s model.State) { send(stateMsg(s)) },
		OnError:   func(err error) { send(errMsg{err}) },
		Logger:    opts.Logger,
		Selection: opts.Selection,
	})
	if err != nil {
		p.Quit()
		<-done
		return err
	}
	p.Send(readyMsg{ctrl: ctrl})

	runErr := <-done
	if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
		runErr = nil
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClose()
	return errors.Join(runErr, ctrl.Close(closeCtx))
}

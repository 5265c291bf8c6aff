package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mixerpanel/internal/panel"
	"mixerpanel/internal/remote"
	"mixerpanel/internal/transport"
	"mixerpanel/internal/ui"
)

// runPanel builds the panel and runs it until the user quits or a signal arrives.
//
// With the terminal panel the bubbletea Update loop owns the Panel; headless,
// a panel.Loop does. Either way the remote endpoint only reaches the Panel
// through that owner.
func (a *app) runPanel(parent context.Context, headless bool) error {
	if headless && !a.cfg.Remote.Enabled {
		return errors.New("--headless needs the remote endpoint (--remote or remote.enabled)")
	}

	ctx, release := withShutdown(parent)
	defer release()

	logger, cleanup, err := a.logger(!headless)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Infow("starting",
		"version", version,
		"target", a.cfg.Target.Address,
		"mute_buttons", a.cfg.MuteMode(),
		"remote", a.cfg.Remote.Enabled,
	)

	sender, err := transport.Dial(ctx, a.cfg.Target.Address, logger)
	if err != nil {
		return err
	}
	p := panel.New(sender, panel.Options{MuteMode: a.cfg.MuteMode()}, logger)
	defer p.Close()

	if headless {
		err = runHeadless(ctx, p, a.cfg.RemoteServerConfig(), logger)
	} else {
		err = a.runTerminal(ctx, p, logger)
	}
	if err != nil {
		logger.Errorw("stopped", "error", err)
		return err
	}
	logger.Infow("stopped")
	return nil
}

func runHeadless(ctx context.Context, p *panel.Panel, cfg remote.Config, logger *zap.SugaredLogger) error {
	loop := panel.NewLoop(p, logger)
	srv := remote.NewServer(loop, cfg, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	return g.Wait()
}

func (a *app) runTerminal(ctx context.Context, p *panel.Panel, logger *zap.SugaredLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	model := ui.New(p, ui.Options{
		Step:       a.cfg.Panel.Step,
		CoarseStep: a.cfg.Panel.CoarseStep,
		Target:     a.cfg.Target.Address,
	})
	prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))

	g.Go(func() error {
		// Quitting the panel stops everything else.
		defer cancel()
		_, err := prog.Run()
		if err != nil && errors.Is(err, tea.ErrProgramKilled) && gctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "terminal panel")
	})

	if a.cfg.Remote.Enabled {
		srv := remote.NewServer(ui.NewBridge(prog), a.cfg.RemoteServerConfig(), logger)
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
	}

	return g.Wait()
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/flashlend/internal/server"
	"github.com/alanyoungcy/flashlend/internal/server/handler"
)

// ServeMode runs the production service: REST + WebSocket API over the
// configured stores and venues, plus the archival loop when enabled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")
	return a.run(ctx, deps)
}

// PaperMode runs the same service against the in-memory store and simulated
// venues, so strategies can be exercised without touching real venues.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode",
		slog.Uint64("seed_balance", a.cfg.Pool.SeedBalance),
	)
	return a.run(ctx, deps)
}

// run starts the long-lived goroutines shared by both modes and blocks
// until the context is cancelled or one of them fails.
func (a *App) run(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	// WebSocket hub.
	g.Go(func() error {
		return deps.Hub.Run(ctx)
	})

	// Event bus pump: committed events from every instance reach this
	// instance's websocket clients.
	if deps.EventBus != nil {
		g.Go(func() error {
			ch, err := deps.EventBus.Subscribe(ctx)
			if err != nil {
				return fmt.Errorf("app: subscribe event bus: %w", err)
			}
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case ev, ok := <-ch:
					if !ok {
						return nil
					}
					deps.Hub.Broadcast(ev)
				}
			}
		})
	}

	// Archival loop.
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}

	// HTTP server.
	if a.cfg.Server.Enabled {
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		}, server.Handlers{
			Health: handler.NewHealthHandler(a.logger),
			Pool:   handler.NewPoolHandler(deps.Engine, deps.Events, a.logger),
			Loans:  handler.NewLoanHandler(deps.Engine, a.logger),
			Admin:  handler.NewAdminHandler(deps.Engine, a.logger),
		}, deps.Hub, deps.RateLimiter, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	}

	return g.Wait()
}

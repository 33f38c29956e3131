package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AtharvaWandhare/synapse/internal/grpcserver"
	"github.com/AtharvaWandhare/synapse/internal/httpapi"
	"github.com/AtharvaWandhare/synapse/internal/scheduler"
)

func newServeCommand(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC APIs, the scheduler and the chat listener",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.serve(commandContext(cmd))
		},
	}
	cmd.Flags().String("port", "", "HTTP port (overrides http.port)")
	_ = r.v.BindPFlag("http.port", cmd.Flags().Lookup("port"))
	return cmd
}

func (r *root) serve(parent context.Context) error {
	cfg, log, err := r.load()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	log.Info("starting", zap.String("app", app), zap.String("version", version), zap.String("storage", cfg.Storage.Driver))

	g, ctx := errgroup.WithContext(ctx)

	// ── HTTP server ──────────────────────────────────────────────────────────
	h := httpapi.NewHandler(httpapi.Services{
		Ledger:   rt.ledger,
		Catalog:  rt.catalog,
		Feed:     rt.feed,
		Profiles: rt.profiles,
		Scores:   rt.scores,
	}, rt.identity, log)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      httpapi.NewRouter(h, cfg.CORS.AllowedOrigins),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down http")
		return srv.Shutdown(shutdownCtx)
	})

	// ── gRPC server ──────────────────────────────────────────────────────────
	if cfg.GRPC.Enabled {
		lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		gs := grpcserver.New(grpcserver.NewServer(rt.ledger, rt.feed, rt.scores, rt.identity), log)
		g.Go(func() error {
			log.Info("grpc listening", zap.String("addr", lis.Addr().String()))
			return gs.Serve(lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			gs.GracefulStop()
			return nil
		})
	}

	// ── Background work ──────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(cfg.Scheduler.Spec, log, rt.tasks()...)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			sched.Stop()
			return nil
		})
	}
	if rt.listener != nil {
		g.Go(func() error {
			if err := rt.listener.Run(ctx); err != nil {
				// Reconcile covers what the listener misses.
				log.Error("chat listener stopped", zap.Error(err))
			}
			return nil
		})
	}

	err = g.Wait()
	log.Info("stopped")
	return err
}

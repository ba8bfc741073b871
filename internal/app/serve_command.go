package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/chat"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/scheduler"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/server"
)

func (s *runtimeState) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := s.buildCache()
			if err != nil {
				return err
			}
			sessions, err := s.openSessions()
			if err != nil {
				return err
			}

			// Chat works without an API key; replies then come from the
			// deterministic router instead of the completion service.
			var completer chat.Completer
			if s.settings.ValidateChat() == nil {
				completer, err = s.buildCompleter()
				if err != nil {
					return err
				}
			} else {
				s.log.Warn().Msg("no completion credentials, serving router answers only")
			}

			orch := chat.NewOrchestrator(cache, sessions, completer, s.log)
			srv := server.New(orch, s.log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(ctx, s.settings.ListenAddr)
			})
			if !s.settings.NoRefresh {
				sched := scheduler.New(s.settings.RefreshInterval, s.log)
				g.Go(func() error {
					err := sched.Run(ctx, cache.Refresh)
					if err == context.Canceled {
						return nil
					}
					return err
				})
				// Warm the cache so the first request is served from memory.
				if err := cache.Refresh(ctx); err != nil {
					s.log.Warn().Err(err).Msg("initial refresh failed, will retry on demand")
				}
			}

			return g.Wait()
		},
	}
}

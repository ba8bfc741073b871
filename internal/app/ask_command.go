package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/chat"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/router"
)

func (s *runtimeState) newAskCommand() *cobra.Command {
	var useLLM bool
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask <query...>",
		Short: "Answer a free-text question about the banks",
		Long: "Answers from the current snapshot using the built-in query router. " +
			"With --llm the question, conversation history and snapshot are sent " +
			"to the configured completion service instead.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			cache, err := s.buildCache()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), s.settings.CompletionTimeout)
			defer cancel()

			if !useLLM {
				collection, err := cache.Get(ctx)
				if err != nil {
					collection = nil
				}
				fmt.Fprintln(s.runner.stdout, router.Answer(query, collection))
				return nil
			}

			completer, err := s.buildCompleter()
			if err != nil {
				return err
			}
			sessions, err := s.openSessions()
			if err != nil {
				return err
			}
			orch := chat.NewOrchestrator(cache, sessions, completer, s.log)
			reply, err := orch.Reply(ctx, sessionID, query)
			if err != nil {
				return err
			}
			fmt.Fprintln(s.runner.stdout, reply)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useLLM, "llm", false, "route the question through the completion service")
	cmd.Flags().StringVar(&sessionID, "session", "", "conversation session id")
	return cmd
}

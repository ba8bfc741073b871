// Package app wires configuration, the aggregator and the chat stack into
// the CLI commands.
package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/aggregator"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/chat"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/config"
	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/httpx"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/logging"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/marginfi"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/solana"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/tokens"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{stdout: stdout, stderr: stderr, now: time.Now}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	log      zerolog.Logger

	cache    *aggregator.Cache
	sessions *chat.SessionStore
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	if state.sessions != nil {
		_ = state.sessions.Close()
	}
	if err == nil {
		return 0
	}
	fmt.Fprintf(r.stderr, "Error: %v\n", err)
	return apperr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "MarginFi bank aggregation and chat assistant",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return apperr.Wrap(apperr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.log = logging.New(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat})
			return nil
		},
	}

	registerGlobalFlags(cmd.PersistentFlags(), &s.flags)

	cmd.AddCommand(s.newBanksCommand())
	cmd.AddCommand(s.newAskCommand())
	cmd.AddCommand(s.newServeCommand())
	cmd.AddCommand(newVersionCommand(s.runner.stdout))
	return cmd
}

// buildCache assembles the chain source, symbol registry and snapshot cache.
func (s *runtimeState) buildCache() (*aggregator.Cache, error) {
	if s.cache != nil {
		return s.cache, nil
	}
	if err := s.settings.ValidateChain(); err != nil {
		return nil, err
	}

	httpClient := httpx.New(s.settings.Timeout, s.settings.Retries)

	var source marginfi.Source
	if s.settings.SnapshotPath != "" {
		source = marginfi.NewSnapshot(s.settings.SnapshotPath, s.log)
	} else {
		groupCfg := marginfi.ConfigFor(s.settings.Network)
		if s.settings.ProgramID != "" {
			groupCfg.ProgramID = s.settings.ProgramID
		}
		if s.settings.GroupAddress != "" {
			groupCfg.Group = s.settings.GroupAddress
		}
		rpc := solana.NewClient(httpClient, s.settings.RPCURL)
		source = marginfi.NewClient(rpc, groupCfg, s.log)
	}

	registry := tokens.NewRegistry(httpClient, s.settings.TokenListURL, s.log)
	agg := aggregator.New(source, registry, s.log)
	s.cache = aggregator.NewCache(agg, s.settings.CacheTTL, s.log)
	return s.cache, nil
}

func (s *runtimeState) openSessions() (*chat.SessionStore, error) {
	if s.sessions != nil {
		return s.sessions, nil
	}
	store, err := chat.OpenSessionStore(s.settings.SessionStorePath, s.settings.SessionLockPath)
	if err != nil {
		return nil, err
	}
	s.sessions = store
	return store, nil
}

// buildCompleter returns the OpenAI client, or an error when chat credentials
// are missing.
func (s *runtimeState) buildCompleter() (chat.Completer, error) {
	if err := s.settings.ValidateChat(); err != nil {
		return nil, err
	}
	httpClient := httpx.New(s.settings.CompletionTimeout, s.settings.Retries)
	return chat.NewOpenAIClient(httpClient, s.settings.OpenAIBaseURL, s.settings.OpenAIAPIKey, s.settings.OpenAIModel, s.log), nil
}

func registerGlobalFlags(flags *pflag.FlagSet, g *config.GlobalFlags) {
	flags.StringVar(&g.ConfigPath, "config", "", "path to config yaml")
	flags.BoolVar(&g.JSON, "json", false, "JSON output")
	flags.BoolVar(&g.Plain, "plain", false, "plain text output")
	flags.StringVar(&g.RPCURL, "rpc-url", "", "Solana RPC endpoint")
	flags.StringVar(&g.Network, "network", "", "network selector (production|dev)")
	flags.StringVar(&g.Snapshot, "snapshot", "", "offline snapshot file instead of live RPC")
	flags.StringVar(&g.Timeout, "timeout", "", "chain read timeout (e.g. 30s)")
	flags.IntVar(&g.Retries, "retries", -1, "HTTP retry attempts")
	flags.StringVar(&g.CacheTTL, "cache-ttl", "", "snapshot cache TTL (e.g. 60s)")
	flags.StringVar(&g.ListenAddr, "listen", "", "serve listen address")
	flags.StringVar(&g.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.BoolVar(&g.NoRefresh, "no-refresh", false, "disable the background refresh loop")
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(stdout, version.Long())
			return nil
		},
	}
}

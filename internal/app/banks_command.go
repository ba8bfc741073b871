package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/report"
)

func (s *runtimeState) newBanksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "banks",
		Short: "Fetch and print the current bank snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := s.buildCache()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), s.settings.Timeout)
			defer cancel()

			collection, err := cache.Get(ctx)
			if err != nil {
				return err
			}
			if s.settings.OutputMode == "json" {
				return writeBanksJSON(s.runner.stdout, collection)
			}
			writeBanksPlain(s.runner.stdout, collection)
			return nil
		},
	}
}

type banksPayload struct {
	FetchedAt string               `json:"fetchedAt"`
	Banks     []*report.BankReport `json:"banks"`
}

func writeBanksJSON(w io.Writer, c *report.Collection) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(banksPayload{FetchedAt: c.Timestamp(), Banks: c.Reports}); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "encode banks", err)
	}
	return nil
}

func writeBanksPlain(w io.Writer, c *report.Collection) {
	fmt.Fprintf(w, "%d banks as of %s\n", len(c.Reports), c.Timestamp())
	for _, r := range c.Reports {
		if !r.Priced {
			fmt.Fprintf(w, "%-10s %s  state=%s  (no oracle price)\n", r.Symbol, r.Address, r.State)
			continue
		}
		fmt.Fprintf(w, "%-10s %s  state=%s  assets=%s  liabilities=%s  util=%s  lend=%s  borrow=%s\n",
			r.Symbol, r.Address, r.State,
			report.FormatUSD(r.Assets), report.FormatUSD(r.Liabilities),
			report.FormatPercent(r.Utilization),
			report.FormatPercent(r.LendingAPY), report.FormatPercent(r.BorrowingAPY))
	}
}

// Package router classifies free-text queries against the current snapshot
// and renders bounded textual summaries.
package router

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/report"
)

const noDataMessage = "No bank data is available right now. Please try again shortly."

// protocolOverview is served for documentation-style questions.
const protocolOverview = "MarginFi is a decentralized lending protocol on Solana. " +
	"Each bank is a single-asset pool: lenders deposit to earn yield, borrowers " +
	"post collateral and pay interest, and rates move along a configured curve " +
	"with the pool's utilization."

var greetingWords = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true, "sup": true,
	"gm": true, "greetings": true, "howdy": true, "good": true,
	"morning": true, "afternoon": true, "evening": true, "there": true,
}

// routerWords are tokens with meaning to the classifier; they are never
// mistaken for ticker symbols.
var routerWords = map[string]bool{
	"show": true, "all": true, "bank": true, "banks": true, "top": true,
	"highest": true, "best": true, "asset": true, "assets": true,
	"liability": true, "liabilities": true, "total": true, "combined": true,
	"apy": true, "tvl": true, "usd": true, "what": true, "whats": true,
	"are": true, "is": true, "the": true, "my": true, "for": true, "of": true,
	"and": true, "in": true, "on": true, "me": true, "about": true,
	"marginfi": true, "docs": true, "documentation": true, "rates": true,
	"rate": true, "value": true, "how": true, "much": true, "many": true,
}

var topPattern = regexp.MustCompile(`(?i)\b(?:top|highest|best)\b\s*(\d+)?\s*(assets?|liabilities|banks?)?`)

type sortMetric int

const (
	byAssets sortMetric = iota
	byLiabilities
)

// Answer routes one query. Intents are checked in a fixed priority order and
// the first match wins; the fallback is the aggregate asset summary.
func Answer(query string, c *report.Collection) string {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)
	normalized := strings.TrimRight(lower, "?!. ")

	if normalized == "show all banks" {
		return showAllBanks(c)
	}
	if isGreeting(lower) {
		return greet(c)
	}
	if isDocsQuery(lower) {
		return docsAnswer(c)
	}
	if strings.Contains(lower, "loop") {
		return "Looping opportunities are not tracked here. I can report bank assets, liabilities, utilization and APYs."
	}
	if strings.Contains(lower, "liquidat") {
		return "Liquidation data is not tracked here. I can report bank assets, liabilities, utilization and APYs."
	}
	if empty(c) {
		return noDataMessage
	}
	if normalized == "banks" {
		return topBanks(c, 3, byAssets)
	}
	if strings.Contains(lower, "total") || strings.Contains(lower, "combined") {
		return combinedTotals(c)
	}
	if m := topPattern.FindStringSubmatch(lower); m != nil {
		n := 3
		if m[1] != "" {
			if parsed, err := strconv.Atoi(m[1]); err == nil && parsed > 0 {
				n = parsed
			}
		}
		metric := byAssets
		if strings.HasPrefix(m[2], "liabilit") {
			metric = byLiabilities
		}
		return topBanks(c, n, metric)
	}
	if symbol, bank, found := tickerIn(trimmed, c); found {
		if bank != nil {
			return bankDetail(bank, c)
		}
		return fmt.Sprintf("No data found for %s. I can only report on banks currently tracked, as of %s.", symbol, c.Timestamp())
	}
	if strings.Contains(lower, "liabilit") || strings.Contains(lower, "borrow") {
		return fmt.Sprintf("Total liabilities across %d banks: %s (as of %s).",
			len(c.Reports), report.FormatUSD(c.TotalLiabilities()), c.Timestamp())
	}
	// Asset mentions and the generic fallback share one summary.
	return fmt.Sprintf("Total assets across %d banks: %s (as of %s).",
		len(c.Reports), report.FormatUSD(c.TotalAssets()), c.Timestamp())
}

func empty(c *report.Collection) bool {
	return c == nil || len(c.Reports) == 0
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	})
}

func isGreeting(lower string) bool {
	fields := tokenize(lower)
	if len(fields) == 0 || len(fields) > 4 {
		return false
	}
	for _, f := range fields {
		if !greetingWords[f] {
			return false
		}
	}
	return true
}

func isDocsQuery(lower string) bool {
	if strings.Contains(lower, "docs") || strings.Contains(lower, "documentation") {
		return true
	}
	return strings.Contains(lower, "marginfi") &&
		(strings.Contains(lower, "what") || strings.Contains(lower, "about") || strings.Contains(lower, "explain"))
}

// tickerIn scans the query for a token naming a bank. A known symbol wins;
// otherwise an all-caps token that is not router vocabulary is treated as an
// unknown ticker so the caller can refuse rather than invent figures.
func tickerIn(query string, c *report.Collection) (symbol string, bank *report.BankReport, found bool) {
	unknown := ""
	for _, tok := range tokenize(query) {
		lower := strings.ToLower(tok)
		if routerWords[lower] || greetingWords[lower] {
			continue
		}
		if b := c.FindBySymbol(tok); b != nil {
			return b.Symbol, b, true
		}
		if unknown == "" && len(tok) >= 2 && tok == strings.ToUpper(tok) {
			unknown = tok
		}
	}
	if unknown != "" {
		return unknown, nil, true
	}
	return "", nil, false
}

func greet(c *report.Collection) string {
	if empty(c) {
		return "Hello! I report on MarginFi lending banks, but no bank data is available right now."
	}
	return fmt.Sprintf("Hello! I'm tracking %d MarginFi banks holding %s in total assets (as of %s). Ask me about a bank, assets, liabilities or APYs.",
		len(c.Reports), report.FormatUSD(c.TotalAssets()), c.Timestamp())
}

func docsAnswer(c *report.Collection) string {
	if empty(c) {
		return protocolOverview
	}
	return fmt.Sprintf("%s\n\nRight now I track %d banks holding %s in total assets (as of %s).",
		protocolOverview, len(c.Reports), report.FormatUSD(c.TotalAssets()), c.Timestamp())
}

func showAllBanks(c *report.Collection) string {
	if empty(c) {
		return noDataMessage
	}
	var b strings.Builder
	fmt.Fprintf(&b, "All %d banks (as of %s):\n", len(c.Reports), c.Timestamp())
	for _, r := range c.Reports {
		b.WriteString(bankLine(r))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func topBanks(c *report.Collection, n int, m sortMetric) string {
	sorted := make([]*report.BankReport, len(c.Reports))
	copy(sorted, c.Reports)
	sort.SliceStable(sorted, func(i, j int) bool {
		if m == byLiabilities {
			return sorted[i].Liabilities.GreaterThan(sorted[j].Liabilities)
		}
		return sorted[i].Assets.GreaterThan(sorted[j].Assets)
	})
	if n > len(sorted) {
		n = len(sorted)
	}

	name := "assets"
	if m == byLiabilities {
		name = "liabilities"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Top %d banks by %s (as of %s):\n", n, name, c.Timestamp())
	for _, r := range sorted[:n] {
		b.WriteString(bankLine(r))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func combinedTotals(c *report.Collection) string {
	return fmt.Sprintf("Across %d banks: %s in total assets and %s in total liabilities (as of %s).",
		len(c.Reports), report.FormatUSD(c.TotalAssets()), report.FormatUSD(c.TotalLiabilities()), c.Timestamp())
}

func bankLine(r *report.BankReport) string {
	return fmt.Sprintf("- %s (%s): assets %s, liabilities %s, lending APY %s, borrowing APY %s",
		r.Symbol, r.Address,
		report.FormatUSD(r.Assets), report.FormatUSD(r.Liabilities),
		report.FormatPercent(r.LendingAPY), report.FormatPercent(r.BorrowingAPY))
}

func bankDetail(r *report.BankReport, c *report.Collection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s bank (%s), as of %s:\n", r.Symbol, r.Address, c.Timestamp())
	fmt.Fprintf(&b, "  state: %s, risk tier: %s\n", r.State, r.RiskTier)
	if !r.Priced {
		b.WriteString("  no oracle price is currently available for this bank, so USD figures cannot be reported")
		return b.String()
	}
	fmt.Fprintf(&b, "  TVL: %s\n", report.FormatUSD(r.TVL))
	fmt.Fprintf(&b, "  assets: %s, liabilities: %s\n", report.FormatUSD(r.Assets), report.FormatUSD(r.Liabilities))
	fmt.Fprintf(&b, "  utilization: %s\n", report.FormatPercent(r.Utilization))
	fmt.Fprintf(&b, "  lending APY: %s (net %s), borrowing APY: %s",
		report.FormatPercent(r.LendingAPY), report.FormatPercent(r.NetLendingAPY), report.FormatPercent(r.BorrowingAPY))
	return b.String()
}

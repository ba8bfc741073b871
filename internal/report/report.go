// Package report turns decoded bank state into presentation-ready snapshots.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/marginfi"
)

// UnknownSymbol is shown for mints no registry could resolve.
const UnknownSymbol = "Unknown"

// BankReport is one bank's snapshot. USD and rate fields are numeric; the
// Format helpers render them for display, and the rendered strings re-parse
// to the same rounded value.
type BankReport struct {
	Address  string `json:"address"`
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	State    string `json:"state"`
	RiskTier string `json:"riskTier"`

	TVL         decimal.Decimal `json:"tvlUsd"`
	Assets      decimal.Decimal `json:"assetsUsd"`
	Liabilities decimal.Decimal `json:"liabilitiesUsd"`

	// Fractional rates (0.07 == 7%).
	Utilization     decimal.Decimal `json:"utilization"`
	LendingAPY      decimal.Decimal `json:"lendingApy"`
	BorrowingAPY    decimal.Decimal `json:"borrowingApy"`
	NetLendingAPY   decimal.Decimal `json:"netLendingApy"`
	NetBorrowingAPY decimal.Decimal `json:"netBorrowingApy"`

	// Priced is false when the bank had no readable oracle; every numeric
	// field above is then zero rather than a guess.
	Priced bool `json:"priced"`
}

// Build derives a report from one decoded bank. A missing oracle price zeroes
// the financial figures instead of failing.
func Build(bank *marginfi.Bank, price marginfi.OraclePrice, priced bool, symbol string) *BankReport {
	if symbol == "" {
		symbol = UnknownSymbol
	}
	r := &BankReport{
		Address:  bank.Address,
		Mint:     bank.Mint,
		Symbol:   symbol,
		State:    bank.Config.OperationalState.String(),
		RiskTier: bank.Config.RiskTier.String(),
		Priced:   priced,
	}
	if !priced {
		return r
	}

	r.Utilization = bank.ComputeUtilizationRate()
	rates := bank.ComputeInterestRates()
	r.LendingAPY = rates.LendingRate
	r.BorrowingAPY = rates.BorrowingRate

	// Lenders net out the fixed protocol and insurance fees; the borrowing
	// side already carries them. Emission incentives are not tracked
	// on-chain in the accounts we read, so they contribute nothing here.
	fixedFees := bank.Config.InterestRate.InsuranceFeeFixedAPR.Add(bank.Config.InterestRate.ProtocolFixedFeeAPR)
	r.NetLendingAPY = rates.LendingRate.Sub(fixedFees)
	if r.NetLendingAPY.Sign() < 0 {
		r.NetLendingAPY = decimal.Zero
	}
	r.NetBorrowingAPY = rates.BorrowingRate

	r.Assets = bank.ComputeAssetUSDValue(price, bank.TotalAssetShares, marginfi.MarginRequirementEquity, marginfi.PriceBiasNone).Round(2)
	r.Liabilities = bank.ComputeLiabilityUSDValue(price, bank.TotalLiabilityShares, marginfi.MarginRequirementEquity, marginfi.PriceBiasNone).Round(2)
	r.TVL = bank.ComputeTVL(price).Round(2)
	return r
}

// Collection is one complete fetch cycle's worth of reports.
type Collection struct {
	Reports   []*BankReport
	FetchedAt time.Time
}

// Timestamp renders the fetch time the way every textual summary embeds it.
func (c *Collection) Timestamp() string {
	return c.FetchedAt.UTC().Format("2006-01-02 15:04 UTC")
}

// TotalAssets sums asset value across all banks.
func (c *Collection) TotalAssets() decimal.Decimal {
	total := decimal.Zero
	for _, r := range c.Reports {
		total = total.Add(r.Assets)
	}
	return total
}

// TotalLiabilities sums liability value across all banks.
func (c *Collection) TotalLiabilities() decimal.Decimal {
	total := decimal.Zero
	for _, r := range c.Reports {
		total = total.Add(r.Liabilities)
	}
	return total
}

// FindBySymbol returns the bank whose symbol matches, case-insensitively.
func (c *Collection) FindBySymbol(symbol string) *BankReport {
	for _, r := range c.Reports {
		if strings.EqualFold(r.Symbol, symbol) {
			return r
		}
	}
	return nil
}

// FormatUSD renders a dollar amount with thousands separators and a fixed
// two decimals: 1234.5 becomes "$1,234.50".
func FormatUSD(d decimal.Decimal) string {
	rounded := d.Round(2)
	neg := rounded.Sign() < 0
	abs := rounded.Abs()

	whole := abs.Floor()
	cents := abs.Sub(whole).Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	s := fmt.Sprintf("$%s.%02d", humanize.Comma(whole.IntPart()), cents)
	if neg {
		return "-" + s
	}
	return s
}

// ParseUSD reverses FormatUSD.
func ParseUSD(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(s, ",", "")
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "-"), "$")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.CodeValidation, fmt.Sprintf("parse USD amount %q", s), err)
	}
	if strings.HasPrefix(s, "-") {
		d = d.Neg()
	}
	return d, nil
}

// FormatPercent renders a fractional rate as a fixed two-decimal percentage:
// 0.0356 becomes "3.56%".
func FormatPercent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

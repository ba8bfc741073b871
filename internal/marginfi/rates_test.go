package marginfi

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func curveBank(assetShares, liabilityShares string) *Bank {
	return &Bank{
		MintDecimals:         6,
		AssetShareValue:      decimal.NewFromInt(1),
		LiabilityShareValue:  decimal.NewFromInt(1),
		TotalAssetShares:     dec(assetShares),
		TotalLiabilityShares: dec(liabilityShares),
		Config: BankConfig{
			AssetWeightInit:      dec("0.8"),
			AssetWeightMaint:     dec("0.9"),
			LiabilityWeightInit:  dec("1.25"),
			LiabilityWeightMaint: dec("1.1"),
			InterestRate: InterestRateConfig{
				OptimalUtilizationRate: dec("0.8"),
				PlateauInterestRate:    dec("0.1"),
				MaxInterestRate:        dec("3"),
			},
		},
	}
}

func TestComputeUtilizationRate(t *testing.T) {
	tests := []struct {
		name   string
		assets string
		liabs  string
		want   string
	}{
		{"half", "1000", "500", "0.5"},
		{"full", "1000", "1000", "1"},
		{"empty bank", "0", "0", "0"},
		{"no assets with debt", "0", "10", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := curveBank(tt.assets, tt.liabs).ComputeUtilizationRate()
			if !got.Equal(dec(tt.want)) {
				t.Errorf("utilization = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestComputeInterestRatesBelowOptimal(t *testing.T) {
	// 50% utilization against an 80% kink: base = 0.5/0.8 * 0.1 = 0.0625.
	rates := curveBank("1000", "500").ComputeInterestRates()
	if !rates.BorrowingRate.Equal(dec("0.0625")) {
		t.Errorf("borrowing = %s, want 0.0625", rates.BorrowingRate)
	}
	if !rates.LendingRate.Equal(dec("0.03125")) {
		t.Errorf("lending = %s, want 0.03125", rates.LendingRate)
	}
}

func TestComputeInterestRatesAtOptimal(t *testing.T) {
	rates := curveBank("1000", "800").ComputeInterestRates()
	if !rates.BorrowingRate.Equal(dec("0.1")) {
		t.Errorf("borrowing = %s, want plateau 0.1", rates.BorrowingRate)
	}
	if !rates.LendingRate.Equal(dec("0.08")) {
		t.Errorf("lending = %s, want 0.08", rates.LendingRate)
	}
}

func TestComputeInterestRatesAboveOptimal(t *testing.T) {
	// 90% utilization: excess = (0.9-0.8)/(1-0.8) = 0.5,
	// base = 0.1 + 0.5*(3-0.1) = 1.55.
	rates := curveBank("1000", "900").ComputeInterestRates()
	if !rates.BorrowingRate.Equal(dec("1.55")) {
		t.Errorf("borrowing = %s, want 1.55", rates.BorrowingRate)
	}
	if !rates.LendingRate.Equal(dec("1.395")) {
		t.Errorf("lending = %s, want 1.395", rates.LendingRate)
	}
}

func TestComputeInterestRatesWithFees(t *testing.T) {
	bank := curveBank("1000", "500")
	bank.Config.InterestRate.InsuranceIRFee = dec("0.02")
	bank.Config.InterestRate.ProtocolIRFee = dec("0.04")
	bank.Config.InterestRate.InsuranceFeeFixedAPR = dec("0.01")
	bank.Config.InterestRate.ProtocolFixedFeeAPR = dec("0.03")

	rates := bank.ComputeInterestRates()
	// 0.0625 * (1 + 0.06) + 0.04 = 0.10625.
	if !rates.BorrowingRate.Equal(dec("0.10625")) {
		t.Errorf("borrowing = %s, want 0.10625", rates.BorrowingRate)
	}
	// Lenders are unaffected by borrower fees.
	if !rates.LendingRate.Equal(dec("0.03125")) {
		t.Errorf("lending = %s, want 0.03125", rates.LendingRate)
	}
}

func TestBiasedPrice(t *testing.T) {
	p := OraclePrice{Price: dec("100"), Confidence: dec("2")}
	if !p.BiasedPrice(PriceBiasNone).Equal(dec("100")) {
		t.Error("none bias changed the price")
	}
	if !p.BiasedPrice(PriceBiasLow).Equal(dec("98")) {
		t.Error("low bias wrong")
	}
	if !p.BiasedPrice(PriceBiasHigh).Equal(dec("102")) {
		t.Error("high bias wrong")
	}
}

func TestComputeUSDValues(t *testing.T) {
	bank := curveBank("2000000", "1000000") // 2 and 1 whole tokens at 6 decimals
	price := OraclePrice{Price: dec("50")}

	// Equity valuation uses weight 1.
	assets := bank.ComputeAssetUSDValue(price, bank.TotalAssetShares, MarginRequirementEquity, PriceBiasNone)
	if !assets.Equal(dec("100")) {
		t.Errorf("assets = %s, want 100", assets)
	}
	liabs := bank.ComputeLiabilityUSDValue(price, bank.TotalLiabilityShares, MarginRequirementEquity, PriceBiasNone)
	if !liabs.Equal(dec("50")) {
		t.Errorf("liabilities = %s, want 50", liabs)
	}

	// Initial margin haircuts assets and grosses up liabilities.
	weighted := bank.ComputeAssetUSDValue(price, bank.TotalAssetShares, MarginRequirementInitial, PriceBiasNone)
	if !weighted.Equal(dec("80")) {
		t.Errorf("weighted assets = %s, want 80", weighted)
	}
	weightedLiab := bank.ComputeLiabilityUSDValue(price, bank.TotalLiabilityShares, MarginRequirementInitial, PriceBiasNone)
	if !weightedLiab.Equal(dec("62.5")) {
		t.Errorf("weighted liabilities = %s, want 62.5", weightedLiab)
	}
}

func TestComputeTVLIsAssetsOnly(t *testing.T) {
	bank := curveBank("2000000", "1500000")
	tvl := bank.ComputeTVL(OraclePrice{Price: dec("50")})
	if !tvl.Equal(dec("100")) {
		t.Errorf("tvl = %s, want 100 (liabilities must not be subtracted)", tvl)
	}
}

func TestNegativeValueClampedToZero(t *testing.T) {
	bank := curveBank("1000", "0")
	price := OraclePrice{Price: dec("1"), Confidence: dec("5")}
	v := bank.ComputeAssetUSDValue(price, bank.TotalAssetShares, MarginRequirementEquity, PriceBiasLow)
	if v.Sign() != 0 {
		t.Errorf("value = %s, want 0", v)
	}
}

package marginfi

import (
	"github.com/shopspring/decimal"
)

// MarginRequirementType selects which configured weight set applies when
// valuing assets and liabilities.
type MarginRequirementType uint8

const (
	MarginRequirementInitial MarginRequirementType = iota
	MarginRequirementMaintenance
	MarginRequirementEquity
)

// PriceBias selects which side of the oracle confidence band to price with.
type PriceBias uint8

const (
	PriceBiasNone PriceBias = iota
	PriceBiasLow
	PriceBiasHigh
)

// OraclePrice is an externally supplied market price with its confidence
// interval, both in USD per whole token.
type OraclePrice struct {
	Price      decimal.Decimal
	Confidence decimal.Decimal
}

// BiasedPrice applies the requested confidence-band bias.
func (p OraclePrice) BiasedPrice(bias PriceBias) decimal.Decimal {
	switch bias {
	case PriceBiasLow:
		return p.Price.Sub(p.Confidence)
	case PriceBiasHigh:
		return p.Price.Add(p.Confidence)
	default:
		return p.Price
	}
}

// InterestRates carries both sides of the bank's current rate curve output,
// as fractional APRs (0.07 == 7%).
type InterestRates struct {
	LendingRate   decimal.Decimal
	BorrowingRate decimal.Decimal
}

// TotalAssetQuantity returns the bank's assets in native token units.
func (b *Bank) TotalAssetQuantity() decimal.Decimal {
	return b.TotalAssetShares.Mul(b.AssetShareValue)
}

// TotalLiabilityQuantity returns the bank's liabilities in native token units.
func (b *Bank) TotalLiabilityQuantity() decimal.Decimal {
	return b.TotalLiabilityShares.Mul(b.LiabilityShareValue)
}

// ComputeUtilizationRate returns liabilities over assets in [0, inf),
// defined as 0 when the bank holds no assets.
func (b *Bank) ComputeUtilizationRate() decimal.Decimal {
	assets := b.TotalAssetQuantity()
	if assets.IsZero() {
		return decimal.Zero
	}
	return b.TotalLiabilityQuantity().Div(assets)
}

// ComputeInterestRates evaluates the configured two-segment rate curve at
// the bank's current utilization. The borrowing side is grossed up by the
// protocol and insurance fees; the lending side scales with utilization.
func (b *Bank) ComputeInterestRates() InterestRates {
	ir := b.Config.InterestRate
	utilization := b.ComputeUtilizationRate()

	base := baseCurveRate(ir, utilization)

	one := decimal.NewFromInt(1)
	rateFee := ir.InsuranceIRFee.Add(ir.ProtocolIRFee)
	fixedFee := ir.InsuranceFeeFixedAPR.Add(ir.ProtocolFixedFeeAPR)

	return InterestRates{
		LendingRate:   base.Mul(utilization),
		BorrowingRate: base.Mul(one.Add(rateFee)).Add(fixedFee),
	}
}

func baseCurveRate(ir InterestRateConfig, utilization decimal.Decimal) decimal.Decimal {
	optimal := ir.OptimalUtilizationRate
	plateau := ir.PlateauInterestRate
	max := ir.MaxInterestRate

	if utilization.LessThanOrEqual(optimal) {
		if optimal.IsZero() {
			return plateau
		}
		return utilization.Div(optimal).Mul(plateau)
	}

	one := decimal.NewFromInt(1)
	denom := one.Sub(optimal)
	if denom.Sign() <= 0 {
		return max
	}
	excess := utilization.Sub(optimal).Div(denom)
	if excess.GreaterThan(one) {
		excess = one
	}
	return plateau.Add(excess.Mul(max.Sub(plateau)))
}

// ComputeAssetUSDValue prices asset shares with the requested margin weight
// and price bias.
func (b *Bank) ComputeAssetUSDValue(price OraclePrice, shares decimal.Decimal, mrt MarginRequirementType, bias PriceBias) decimal.Decimal {
	weight := decimal.NewFromInt(1)
	switch mrt {
	case MarginRequirementInitial:
		weight = b.Config.AssetWeightInit
	case MarginRequirementMaintenance:
		weight = b.Config.AssetWeightMaint
	}
	return b.usdValue(price.BiasedPrice(bias), shares.Mul(b.AssetShareValue), weight)
}

// ComputeLiabilityUSDValue prices liability shares with the requested margin
// weight and price bias.
func (b *Bank) ComputeLiabilityUSDValue(price OraclePrice, shares decimal.Decimal, mrt MarginRequirementType, bias PriceBias) decimal.Decimal {
	weight := decimal.NewFromInt(1)
	switch mrt {
	case MarginRequirementInitial:
		weight = b.Config.LiabilityWeightInit
	case MarginRequirementMaintenance:
		weight = b.Config.LiabilityWeightMaint
	}
	return b.usdValue(price.BiasedPrice(bias), shares.Mul(b.LiabilityShareValue), weight)
}

// ComputeTVL is the bank's asset value at the unbiased oracle price.
// Liabilities are reported separately, not subtracted.
func (b *Bank) ComputeTVL(price OraclePrice) decimal.Decimal {
	return b.ComputeAssetUSDValue(price, b.TotalAssetShares, MarginRequirementEquity, PriceBiasNone)
}

func (b *Bank) usdValue(price, quantity, weight decimal.Decimal) decimal.Decimal {
	scale := decimal.New(1, int32(b.MintDecimals))
	ui := quantity.Div(scale)
	value := ui.Mul(price).Mul(weight)
	if value.Sign() < 0 {
		return decimal.Zero
	}
	return value
}

package marginfi

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
)

// OperationalState is decoded once at ingestion and never compared as text.
type OperationalState uint8

const (
	StatePaused OperationalState = iota
	StateActive
	StateReduceOnly
	StateUnknown
)

func (s OperationalState) String() string {
	switch s {
	case StatePaused:
		return "Paused"
	case StateActive:
		return "Active"
	case StateReduceOnly:
		return "ReduceOnly"
	default:
		return "Unknown"
	}
}

// RiskTier classifies how a bank's collateral counts toward margin.
type RiskTier uint8

const (
	RiskTierCollateral RiskTier = iota
	RiskTierIsolated
	RiskTierUnknown
)

func (r RiskTier) String() string {
	switch r {
	case RiskTierCollateral:
		return "Collateral"
	case RiskTierIsolated:
		return "Isolated"
	default:
		return "Unknown"
	}
}

// OracleSetup identifies the price-feed flavor configured for a bank.
type OracleSetup uint8

const (
	OracleSetupNone OracleSetup = iota
	OracleSetupPythLegacy
	OracleSetupSwitchboardV2
	OracleSetupPythPush
	OracleSetupSwitchboardPull
)

// InterestRateConfig holds the bank's configured rate curve and fees.
// All values are fractional (0.9 == 90%).
type InterestRateConfig struct {
	OptimalUtilizationRate decimal.Decimal
	PlateauInterestRate    decimal.Decimal
	MaxInterestRate        decimal.Decimal
	InsuranceFeeFixedAPR   decimal.Decimal
	InsuranceIRFee         decimal.Decimal
	ProtocolFixedFeeAPR    decimal.Decimal
	ProtocolIRFee          decimal.Decimal
}

// BankConfig mirrors the on-chain bank configuration we consume.
type BankConfig struct {
	AssetWeightInit      decimal.Decimal
	AssetWeightMaint     decimal.Decimal
	LiabilityWeightInit  decimal.Decimal
	LiabilityWeightMaint decimal.Decimal
	DepositLimit         uint64
	InterestRate         InterestRateConfig
	OperationalState     OperationalState
	OracleSetup          OracleSetup
	OracleKeys           []string
	BorrowLimit          uint64
	RiskTier             RiskTier
}

// Bank is one decoded lending pool account.
type Bank struct {
	Address              string
	Mint                 string
	MintDecimals         uint8
	Group                string
	AssetShareValue      decimal.Decimal
	LiabilityShareValue  decimal.Decimal
	TotalAssetShares     decimal.Decimal
	TotalLiabilityShares decimal.Decimal
	LastUpdate           int64
	Config               BankConfig
}

// OracleKey returns the primary price-feed account for this bank, or "" when
// none is configured.
func (b *Bank) OracleKey() string {
	if b.Config.OracleSetup == OracleSetupNone || len(b.Config.OracleKeys) == 0 {
		return ""
	}
	return b.Config.OracleKeys[0]
}

const (
	oracleKeyCount = 5
	// Discriminator through the end of the risk tier field.
	minBankAccountLen = 8 + 32 + 1 + 32 + 16 + 16 + 32 + 1 + 1 + 32 + 1 + 1 + 16 +
		32 + 1 + 1 + 16 + 16 + 16 + 8 +
		16 + 16 + 16 + 16 + 8 + 7*16 + 1 + 1 + oracleKeyCount*32 + 8 + 1
)

// BankDiscriminator is the 8-byte Anchor account tag for Bank accounts,
// sha256("account:Bank")[:8].
func BankDiscriminator() []byte {
	sum := sha256.Sum256([]byte("account:Bank"))
	return sum[:8]
}

// DecodeBank parses a raw bank account buffer. A failure here affects only
// this bank; callers skip it and continue with the rest of the group.
func DecodeBank(address string, data []byte) (*Bank, error) {
	if len(data) < minBankAccountLen {
		return nil, apperr.New(apperr.CodeDecode, fmt.Sprintf("bank %s: account data too short (%d bytes)", address, len(data)))
	}
	if !bytes.Equal(data[:8], BankDiscriminator()) {
		return nil, apperr.New(apperr.CodeDecode, fmt.Sprintf("bank %s: not a bank account (discriminator mismatch)", address))
	}

	r := &accountReader{buf: data, pos: 8}

	bank := &Bank{Address: address}
	bank.Mint = r.pubkey()
	bank.MintDecimals = r.u8()
	bank.Group = r.pubkey()
	bank.AssetShareValue = r.i80f48()
	bank.LiabilityShareValue = r.i80f48()

	r.skip(32 + 1 + 1) // liquidity vault + bumps
	r.skip(32 + 1 + 1) // insurance vault + bumps
	r.skip(16)         // collected insurance fees outstanding
	r.skip(32 + 1 + 1) // fee vault + bumps
	r.skip(16)         // collected group fees outstanding

	bank.TotalLiabilityShares = r.i80f48()
	bank.TotalAssetShares = r.i80f48()
	bank.LastUpdate = int64(r.u64())

	cfg := &bank.Config
	cfg.AssetWeightInit = r.i80f48()
	cfg.AssetWeightMaint = r.i80f48()
	cfg.LiabilityWeightInit = r.i80f48()
	cfg.LiabilityWeightMaint = r.i80f48()
	cfg.DepositLimit = r.u64()

	ir := &cfg.InterestRate
	ir.OptimalUtilizationRate = r.i80f48()
	ir.PlateauInterestRate = r.i80f48()
	ir.MaxInterestRate = r.i80f48()
	ir.InsuranceFeeFixedAPR = r.i80f48()
	ir.InsuranceIRFee = r.i80f48()
	ir.ProtocolFixedFeeAPR = r.i80f48()
	ir.ProtocolIRFee = r.i80f48()

	cfg.OperationalState = decodeOperationalState(r.u8())
	cfg.OracleSetup = OracleSetup(r.u8())
	cfg.OracleKeys = make([]string, 0, oracleKeyCount)
	for i := 0; i < oracleKeyCount; i++ {
		key := r.pubkey()
		if key != systemProgram {
			cfg.OracleKeys = append(cfg.OracleKeys, key)
		}
	}
	cfg.BorrowLimit = r.u64()
	cfg.RiskTier = decodeRiskTier(r.u8())

	if r.err != nil {
		return nil, apperr.Wrap(apperr.CodeDecode, fmt.Sprintf("bank %s", address), r.err)
	}
	return bank, nil
}

const systemProgram = "11111111111111111111111111111111"

func decodeOperationalState(v uint8) OperationalState {
	switch OperationalState(v) {
	case StatePaused, StateActive, StateReduceOnly:
		return OperationalState(v)
	default:
		return StateUnknown
	}
}

func decodeRiskTier(v uint8) RiskTier {
	switch RiskTier(v) {
	case RiskTierCollateral, RiskTierIsolated:
		return RiskTier(v)
	default:
		return RiskTierUnknown
	}
}

// accountReader walks a raw account buffer, remembering the first error.
type accountReader struct {
	buf []byte
	pos int
	err error
}

func (r *accountReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("truncated account data at offset %d", r.pos)
		return nil
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *accountReader) skip(n int) { _ = r.take(n) }

func (r *accountReader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *accountReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *accountReader) pubkey() string {
	b := r.take(32)
	if b == nil {
		return ""
	}
	return base58.Encode(b)
}

func (r *accountReader) i80f48() decimal.Decimal {
	b := r.take(16)
	if b == nil {
		return decimal.Zero
	}
	return i80f48FromBytes(b)
}

var i80f48Divisor = decimal.NewFromInt(1 << 48)

// i80f48FromBytes converts a little-endian 128-bit fixed-point value with 48
// fractional bits into a decimal.
func i80f48FromBytes(b []byte) decimal.Decimal {
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = b[15-i]
	}
	n := new(big.Int).SetBytes(be)
	// Two's complement for negative values.
	if be[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return decimal.NewFromBigInt(n, 0).Div(i80f48Divisor)
}

// i80f48Bytes is the inverse of i80f48FromBytes; snapshot tooling and tests
// use it to build account buffers.
func i80f48Bytes(d decimal.Decimal) []byte {
	scaled := d.Mul(i80f48Divisor).Round(0)
	n := scaled.BigInt()
	if n.Sign() < 0 {
		n = new(big.Int).Add(n, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	be := n.FillBytes(make([]byte, 16))
	le := make([]byte, 16)
	for i := 0; i < 16; i++ {
		le[i] = be[15-i]
	}
	return le
}

package marginfi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
)

// bankFixture holds the plain values a test buffer is built from.
type bankFixture struct {
	mint                 [32]byte
	decimals             uint8
	group                [32]byte
	assetShareValue      decimal.Decimal
	liabilityShareValue  decimal.Decimal
	totalLiabilityShares decimal.Decimal
	totalAssetShares     decimal.Decimal
	lastUpdate           uint64
	assetWeightInit      decimal.Decimal
	assetWeightMaint     decimal.Decimal
	liabWeightInit       decimal.Decimal
	liabWeightMaint      decimal.Decimal
	depositLimit         uint64
	rates                [7]decimal.Decimal
	operationalState     uint8
	oracleSetup          uint8
	oracleKeys           [oracleKeyCount][32]byte
	borrowLimit          uint64
	riskTier             uint8
}

func defaultFixture() bankFixture {
	fx := bankFixture{
		decimals:             9,
		assetShareValue:      decimal.RequireFromString("1.05"),
		liabilityShareValue:  decimal.RequireFromString("1.10"),
		totalLiabilityShares: decimal.NewFromInt(500),
		totalAssetShares:     decimal.NewFromInt(1000),
		lastUpdate:           1700000000,
		assetWeightInit:      decimal.RequireFromString("0.8"),
		assetWeightMaint:     decimal.RequireFromString("0.9"),
		liabWeightInit:       decimal.RequireFromString("1.25"),
		liabWeightMaint:      decimal.RequireFromString("1.1"),
		depositLimit:         1_000_000,
		operationalState:     uint8(StateActive),
		oracleSetup:          uint8(OracleSetupPythLegacy),
		borrowLimit:          750_000,
		riskTier:             uint8(RiskTierCollateral),
	}
	fx.mint[0] = 0xAA
	fx.group[0] = 0xBB
	fx.oracleKeys[0][0] = 0xCC
	// Slots 1..4 stay zero, meaning the system program sentinel.
	fx.rates = [7]decimal.Decimal{
		decimal.RequireFromString("0.8"),  // optimal utilization
		decimal.RequireFromString("0.1"),  // plateau rate
		decimal.RequireFromString("3.0"),  // max rate
		decimal.RequireFromString("0.01"), // insurance fixed APR
		decimal.RequireFromString("0.02"), // insurance IR fee
		decimal.RequireFromString("0.03"), // protocol fixed APR
		decimal.RequireFromString("0.04"), // protocol IR fee
	}
	return fx
}

func (fx bankFixture) encode() []byte {
	var buf bytes.Buffer
	u64 := func(v uint64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	}
	dec := func(d decimal.Decimal) { buf.Write(i80f48Bytes(d)) }
	vault := func() { buf.Write(make([]byte, 32+1+1)) }

	buf.Write(BankDiscriminator())
	buf.Write(fx.mint[:])
	buf.WriteByte(fx.decimals)
	buf.Write(fx.group[:])
	dec(fx.assetShareValue)
	dec(fx.liabilityShareValue)
	vault()                    // liquidity vault
	vault()                    // insurance vault
	buf.Write(make([]byte, 16)) // collected insurance fees
	vault()                    // fee vault
	buf.Write(make([]byte, 16)) // collected group fees
	dec(fx.totalLiabilityShares)
	dec(fx.totalAssetShares)
	u64(fx.lastUpdate)
	dec(fx.assetWeightInit)
	dec(fx.assetWeightMaint)
	dec(fx.liabWeightInit)
	dec(fx.liabWeightMaint)
	u64(fx.depositLimit)
	for _, r := range fx.rates {
		dec(r)
	}
	buf.WriteByte(fx.operationalState)
	buf.WriteByte(fx.oracleSetup)
	for i := range fx.oracleKeys {
		buf.Write(fx.oracleKeys[i][:])
	}
	u64(fx.borrowLimit)
	buf.WriteByte(fx.riskTier)
	return buf.Bytes()
}

func (fx bankFixture) decode(t *testing.T) *Bank {
	t.Helper()
	bank, err := DecodeBank("testbank", fx.encode())
	if err != nil {
		t.Fatalf("DecodeBank: %v", err)
	}
	return bank
}

func TestDecodeBank(t *testing.T) {
	fx := defaultFixture()
	bank := fx.decode(t)

	if bank.Address != "testbank" {
		t.Errorf("address = %q", bank.Address)
	}
	if got, want := bank.Mint, base58.Encode(fx.mint[:]); got != want {
		t.Errorf("mint = %q, want %q", got, want)
	}
	if bank.MintDecimals != 9 {
		t.Errorf("decimals = %d, want 9", bank.MintDecimals)
	}
	if got, want := bank.Group, base58.Encode(fx.group[:]); got != want {
		t.Errorf("group = %q, want %q", got, want)
	}
	if !bank.AssetShareValue.Equal(fx.assetShareValue) {
		t.Errorf("asset share value = %s", bank.AssetShareValue)
	}
	if !bank.TotalLiabilityShares.Equal(fx.totalLiabilityShares) {
		t.Errorf("liability shares = %s", bank.TotalLiabilityShares)
	}
	if bank.LastUpdate != 1700000000 {
		t.Errorf("last update = %d", bank.LastUpdate)
	}
	if bank.Config.OperationalState != StateActive {
		t.Errorf("state = %v", bank.Config.OperationalState)
	}
	if bank.Config.DepositLimit != 1_000_000 || bank.Config.BorrowLimit != 750_000 {
		t.Errorf("limits = %d/%d", bank.Config.DepositLimit, bank.Config.BorrowLimit)
	}
	if !bank.Config.InterestRate.ProtocolIRFee.Equal(decimal.RequireFromString("0.04")) {
		t.Errorf("protocol IR fee = %s", bank.Config.InterestRate.ProtocolIRFee)
	}
	if bank.Config.RiskTier != RiskTierCollateral {
		t.Errorf("risk tier = %v", bank.Config.RiskTier)
	}
}

func TestDecodeBankOracleKeysFiltered(t *testing.T) {
	fx := defaultFixture()
	bank := fx.decode(t)

	// Only the first slot carries a real key; the zeroed slots decode to the
	// system program and must not appear.
	if len(bank.Config.OracleKeys) != 1 {
		t.Fatalf("oracle keys = %v, want 1 entry", bank.Config.OracleKeys)
	}
	if got, want := bank.OracleKey(), base58.Encode(fx.oracleKeys[0][:]); got != want {
		t.Errorf("OracleKey() = %q, want %q", got, want)
	}
}

func TestDecodeBankNoOracle(t *testing.T) {
	fx := defaultFixture()
	fx.oracleSetup = uint8(OracleSetupNone)
	if key := fx.decode(t).OracleKey(); key != "" {
		t.Errorf("OracleKey() = %q, want empty", key)
	}
}

func TestDecodeBankUnknownEnums(t *testing.T) {
	fx := defaultFixture()
	fx.operationalState = 99
	fx.riskTier = 99
	bank := fx.decode(t)
	if bank.Config.OperationalState != StateUnknown {
		t.Errorf("state = %v, want Unknown", bank.Config.OperationalState)
	}
	if bank.Config.RiskTier != RiskTierUnknown {
		t.Errorf("risk tier = %v, want Unknown", bank.Config.RiskTier)
	}
}

func TestDecodeBankTruncated(t *testing.T) {
	data := defaultFixture().encode()
	_, err := DecodeBank("short", data[:len(data)/2])
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeDecode {
		t.Fatalf("err = %v, want decode error", err)
	}
}

func TestDecodeBankBadDiscriminator(t *testing.T) {
	data := defaultFixture().encode()
	data[0] ^= 0xFF
	_, err := DecodeBank("bogus", data)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeDecode {
		t.Fatalf("err = %v, want decode error", err)
	}
}

func TestI80F48RoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "-1", "1.05", "-42.5", "123456789.000244140625"} {
		d := decimal.RequireFromString(s)
		got := i80f48FromBytes(i80f48Bytes(d))
		if !got.Equal(d) {
			t.Errorf("round trip %s = %s", s, got)
		}
	}
}

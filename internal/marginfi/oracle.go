package marginfi

import (
	"encoding/binary"
	"math"

	"github.com/shopspring/decimal"
)

// Pyth legacy price account layout. Only the fields we read are named; the
// account is considerably larger.
const (
	pythMagic          = 0xa1b2c3d4
	pythExponentOffset = 20
	pythPriceOffset    = 208
	pythConfOffset     = 216
	pythStatusOffset   = 224
	pythMinAccountLen  = 240

	pythStatusTrading = 1
)

// DecodeOraclePrice extracts a spot price from a raw oracle account. Feeds we
// do not understand yield no price; the owning bank is then reported with
// zero USD values rather than failing the cycle.
func DecodeOraclePrice(setup OracleSetup, data []byte) (OraclePrice, bool) {
	switch setup {
	case OracleSetupPythLegacy, OracleSetupPythPush:
		return decodePythPrice(data)
	default:
		return OraclePrice{}, false
	}
}

func decodePythPrice(data []byte) (OraclePrice, bool) {
	if len(data) < pythMinAccountLen {
		return OraclePrice{}, false
	}
	if binary.LittleEndian.Uint32(data[0:4]) != pythMagic {
		return OraclePrice{}, false
	}
	if binary.LittleEndian.Uint32(data[pythStatusOffset:pythStatusOffset+4]) != pythStatusTrading {
		return OraclePrice{}, false
	}

	exponent := int32(binary.LittleEndian.Uint32(data[pythExponentOffset : pythExponentOffset+4]))
	if exponent < -18 || exponent > 18 {
		return OraclePrice{}, false
	}
	raw := int64(binary.LittleEndian.Uint64(data[pythPriceOffset : pythPriceOffset+8]))
	conf := binary.LittleEndian.Uint64(data[pythConfOffset : pythConfOffset+8])
	if raw <= 0 || conf > math.MaxInt64 {
		return OraclePrice{}, false
	}

	scale := decimal.New(1, exponent)
	return OraclePrice{
		Price:      decimal.NewFromInt(raw).Mul(scale),
		Confidence: decimal.NewFromInt(int64(conf)).Mul(scale),
	}, true
}

package marginfi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
)

// snapshotFile is the on-disk capture format: one deployment's raw bank
// accounts plus the oracle accounts they point at, all base64.
type snapshotFile struct {
	ProgramID string         `json:"programId"`
	Group     string         `json:"group,omitempty"`
	Banks     []snapshotBank `json:"banks"`
}

type snapshotBank struct {
	Address string `json:"address"`
	Data    string `json:"data"`
	Oracle  *struct {
		Address string `json:"address"`
		Data    string `json:"data"`
	} `json:"oracle,omitempty"`
}

// Snapshot replays a captured group state from disk. It satisfies Source, so
// callers cannot tell it apart from the live RPC client.
type Snapshot struct {
	path string
	log  zerolog.Logger
}

func NewSnapshot(path string, log zerolog.Logger) *Snapshot {
	return &Snapshot{path: path, log: log.With().Str("component", "snapshot").Logger()}
}

func (s *Snapshot) FetchGroup(_ context.Context) (*GroupState, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeFetch, "read snapshot file", err)
	}
	var file snapshotFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, apperr.Wrap(apperr.CodeDecode, "parse snapshot file", err)
	}
	if len(file.Banks) == 0 {
		return nil, apperr.New(apperr.CodeFetch, "snapshot contains no bank accounts")
	}

	state := &GroupState{Prices: map[string]OraclePrice{}}
	for _, entry := range file.Banks {
		data, err := base64.StdEncoding.DecodeString(entry.Data)
		if err != nil {
			s.log.Warn().Err(err).Str("bank", entry.Address).Msg("skipping bank with invalid base64 data")
			continue
		}
		bank, err := DecodeBank(entry.Address, data)
		if err != nil {
			s.log.Warn().Err(err).Str("bank", entry.Address).Msg("skipping undecodable bank")
			continue
		}
		state.Banks = append(state.Banks, bank)

		if entry.Oracle == nil {
			continue
		}
		oracleData, err := base64.StdEncoding.DecodeString(entry.Oracle.Data)
		if err != nil {
			s.log.Debug().Err(err).Str("bank", entry.Address).Msg("oracle data invalid, bank stays unpriced")
			continue
		}
		if price, ok := DecodeOraclePrice(bank.Config.OracleSetup, oracleData); ok {
			state.Prices[bank.Address] = price
		}
	}
	if len(state.Banks) == 0 {
		return nil, apperr.New(apperr.CodeDecode, "no bank account decoded successfully")
	}
	return state, nil
}

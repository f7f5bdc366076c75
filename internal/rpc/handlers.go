package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/chain"
	"github.com/Klingon-tech/klingnet-ledger/internal/consensus"
	"github.com/Klingon-tech/klingnet-ledger/internal/mempool"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// ── Mining ──────────────────────────────────────────────────────────────

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	s.mineMu.Lock()
	b, err := s.miner.Mine(ctx)
	s.mineMu.Unlock()
	if err != nil {
		status := mineErrorStatus(err)
		s.logger.Warn().Err(err).Int("status", status).Msg("Mine request failed")
		writeMessage(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MineResult{
		Message:      MsgBlockForged,
		Index:        b.Index,
		Transactions: nonNil(b.Transactions),
		Proof:        b.Proof,
		PreviousHash: b.PreviousHash,
	})
}

func mineErrorStatus(err error) int {
	switch {
	case errors.Is(err, chain.ErrStaleProof):
		return http.StatusConflict
	case errors.Is(err, chain.ErrInvalidProof), errors.Is(err, tx.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, consensus.ErrSearchExhausted),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ── Transactions ────────────────────────────────────────────────────────

func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request) {
	var t tx.Transaction
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, tx.ErrMissingSender),
			errors.Is(err, tx.ErrMissingRecipient),
			errors.Is(err, tx.ErrMissingAmount):
			writeMessage(w, http.StatusBadRequest, MsgMissingValue)
		case errors.Is(err, tx.ErrValidation):
			writeMessage(w, http.StatusBadRequest, err.Error())
		default:
			writeMessage(w, http.StatusBadRequest, MsgInvalidJSON)
		}
		return
	}

	index, err := s.chain.SubmitTransaction(t)
	if err != nil {
		switch {
		case errors.Is(err, tx.ErrValidation), errors.Is(err, mempool.ErrPolicy):
			writeMessage(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, mempool.ErrPoolFull):
			writeMessage(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.logger.Error().Err(err).Msg("Submit transaction failed")
			writeMessage(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{
		Message: fmt.Sprintf("Transaction will be added to Block %d", index),
	})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pending := nonNil(s.chain.Pending())
	writeJSON(w, http.StatusOK, PendingResult{
		Transactions: pending,
		Count:        len(pending),
	})
}

// ── Chain ───────────────────────────────────────────────────────────────

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	blocks := s.chain.Blocks()
	writeJSON(w, http.StatusOK, ChainResult{
		Chain:  blocks,
		Length: len(blocks),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	result := ValidateResult{Valid: true, Length: s.chain.Length()}
	if err := s.chain.Verify(); err != nil {
		result.Valid = false
		result.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, result)
}

// handleBlock looks a block up by decimal index or by 64-char hex hash.
func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var (
		b   block.Block
		err error
	)
	if index, perr := strconv.ParseUint(id, 10, 64); perr == nil {
		b, err = s.chain.BlockByIndex(index)
	} else {
		hash, herr := types.HexToHash(strings.TrimPrefix(id, "0x"))
		if herr != nil {
			writeMessage(w, http.StatusBadRequest, "block id must be an index or a block hash")
			return
		}
		b, err = s.chain.BlockByHash(hash)
	}
	if errors.Is(err, chain.ErrBlockNotFound) {
		writeMessage(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, BlockResult{Hash: b.Hash(), Block: b})
}

// ── Node ────────────────────────────────────────────────────────────────

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	gen := s.chain.Genesis()
	result := NodeResult{
		NodeID:          s.miner.NodeID(),
		Version:         config.Version,
		ChainName:       gen.ChainName,
		Difficulty:      s.chain.PoW().Difficulty,
		MiningReward:    gen.MiningReward.String(),
		EncodingVersion: block.EncodingVersion,
		Length:          s.chain.Length(),
		Pending:         s.chain.PendingCount(),
		Mined:           s.miner.Mined(),
	}
	if last, err := s.chain.LastBlock(); err == nil {
		result.TipHash = last.Hash()
	}
	writeJSON(w, http.StatusOK, result)
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil(txs []tx.Transaction) []tx.Transaction {
	if txs == nil {
		return []tx.Transaction{}
	}
	return txs
}

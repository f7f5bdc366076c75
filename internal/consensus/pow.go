// Package consensus implements the hash-prefix proof-of-work puzzle.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	klog "github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
)

// PoW errors.
var (
	ErrBadDifficulty   = errors.New("difficulty must be between 1 and 64")
	ErrSearchExhausted = errors.New("proof search exhausted without a solution")
)

const (
	// DefaultDifficulty is the number of leading '0' hex characters a
	// proof digest must have.
	DefaultDifficulty = 4

	// MaxDifficulty is the length of a hex SHA-256 digest.
	MaxDifficulty = 64

	// DefaultProgressInterval is how many candidates pass between debug
	// progress lines during a search.
	DefaultProgressInterval = 1 << 20

	// cancelCheckMask sets how often a search looks at its context.
	cancelCheckMask = 0xFFFF
)

// PoW is the proof-of-work puzzle. A candidate proof p is valid for the
// previous proof q when the hex SHA-256 digest of decimal(q)+decimal(p)
// starts with Difficulty '0' characters.
//
// The zero-config value returned by NewPoW searches single-threaded with no
// iteration cap. A PoW is safe for concurrent use once configured.
type PoW struct {
	Difficulty int

	// Threads controls the number of parallel search goroutines.
	// 0 or 1 = single-threaded. Each goroutine searches a strided
	// partition of the candidate space; the result is still the
	// smallest valid proof.
	Threads int

	// MaxIterations caps the search to candidates below this value.
	// 0 means unbounded.
	MaxIterations uint64

	// ProgressInterval is the number of candidates between debug progress
	// logs. 0 disables progress logging.
	ProgressInterval uint64
}

// NewPoW creates a PoW with the given difficulty.
func NewPoW(difficulty int) (*PoW, error) {
	if difficulty < 1 || difficulty > MaxDifficulty {
		return nil, fmt.Errorf("%w: got %d", ErrBadDifficulty, difficulty)
	}
	return &PoW{
		Difficulty:       difficulty,
		ProgressInterval: DefaultProgressInterval,
	}, nil
}

// Valid reports whether candidate solves the puzzle for prev at the given
// difficulty.
func Valid(prev, candidate uint64, difficulty int) bool {
	var a, b [20]byte
	return crypto.HashConcat(
		strconv.AppendUint(a[:0], prev, 10),
		strconv.AppendUint(b[:0], candidate, 10),
	).HasZeroPrefix(difficulty)
}

// IsValid reports whether candidate solves the puzzle for prev.
func (p *PoW) IsValid(prev, candidate uint64) bool {
	return Valid(prev, candidate, p.Difficulty)
}

// Candidates yields 0, 1, 2, ... up to the end of the uint64 range.
// Each call returns a fresh sequence.
func Candidates() iter.Seq[uint64] {
	return Strided(0, 1)
}

// Strided yields start, start+step, start+2*step, ... without wrapping past
// the end of the uint64 range.
func Strided(start, step uint64) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		if step == 0 {
			return
		}
		for c := start; ; c += step {
			if !yield(c) {
				return
			}
			if c > math.MaxUint64-step {
				return
			}
		}
	}
}

// Solutions yields the valid proofs for prev in ascending order. The
// sequence is lazy; callers stop it by breaking out of the range loop.
func (p *PoW) Solutions(prev uint64) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		s := newSolver(prev, p.Difficulty)
		for c := range Candidates() {
			if s.check(c) && !yield(c) {
				return
			}
		}
	}
}

// FindProof returns the smallest valid proof for prev.
// The search stops early with ctx.Err() on cancellation and with
// ErrSearchExhausted when MaxIterations candidates were tried.
func (p *PoW) FindProof(ctx context.Context, prev uint64) (uint64, error) {
	if p.Difficulty < 1 || p.Difficulty > MaxDifficulty {
		return 0, fmt.Errorf("%w: got %d", ErrBadDifficulty, p.Difficulty)
	}

	start := time.Now()
	prog := newProgress(prev, p.ProgressInterval, start)

	var (
		proof uint64
		err   error
	)
	if p.Threads <= 1 {
		proof, err = p.findSingle(ctx, prev, prog)
	} else {
		proof, err = p.findParallel(ctx, prev, p.Threads, prog)
	}
	if err != nil {
		klog.Consensus.Debug().
			Uint64("prev_proof", prev).
			Uint64("checked", prog.checked.Load()).
			Err(err).
			Msg("Proof search stopped")
		return 0, err
	}

	klog.Consensus.Debug().
		Uint64("prev_proof", prev).
		Uint64("proof", proof).
		Dur("elapsed", time.Since(start)).
		Msg("Proof found")
	return proof, nil
}

// limit reports whether candidate c is past the iteration cap.
func (p *PoW) limit(c uint64) bool {
	return p.MaxIterations > 0 && c >= p.MaxIterations
}

func (p *PoW) findSingle(ctx context.Context, prev uint64, prog *progress) (uint64, error) {
	s := newSolver(prev, p.Difficulty)
	var n uint64
	for c := range Candidates() {
		if n&cancelCheckMask == 0 && n > 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			prog.add(cancelCheckMask + 1)
		}
		if p.limit(c) {
			return 0, ErrSearchExhausted
		}
		if s.check(c) {
			return c, nil
		}
		n++
	}
	return 0, ErrSearchExhausted
}

// findParallel runs one goroutine per stride partition. Goroutine i checks
// i, i+threads, i+2*threads, ... and stops once its candidate exceeds the
// best proof found so far, so every candidate below the final answer has
// been checked by the time all goroutines return.
func (p *PoW) findParallel(ctx context.Context, prev uint64, threads int, prog *progress) (uint64, error) {
	const none = math.MaxUint64
	var best atomic.Uint64
	best.Store(none)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(start uint64) {
			defer wg.Done()
			s := newSolver(prev, p.Difficulty)
			var n uint64
			for c := range Strided(start, uint64(threads)) {
				if n&cancelCheckMask == 0 && n > 0 {
					if ctx.Err() != nil {
						return
					}
					prog.add(cancelCheckMask + 1)
				}
				n++
				if c > best.Load() || p.limit(c) {
					return
				}
				if s.check(c) {
					for {
						cur := best.Load()
						if c >= cur || best.CompareAndSwap(cur, c) {
							return
						}
					}
				}
			}
		}(uint64(i))
	}
	wg.Wait()

	// A cancelled goroutine may have skipped a smaller candidate.
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	proof := best.Load()
	if proof == none {
		return 0, ErrSearchExhausted
	}
	return proof, nil
}

// solver checks candidates for one previous proof, reusing the encoded
// prefix and scratch buffer between calls. Not safe for concurrent use.
type solver struct {
	difficulty int
	prefixLen  int
	buf        []byte
}

func newSolver(prev uint64, difficulty int) *solver {
	buf := strconv.AppendUint(make([]byte, 0, 40), prev, 10)
	return &solver{difficulty: difficulty, prefixLen: len(buf), buf: buf}
}

func (s *solver) check(c uint64) bool {
	s.buf = strconv.AppendUint(s.buf[:s.prefixLen], c, 10)
	return crypto.Hash(s.buf).HasZeroPrefix(s.difficulty)
}

// progress counts checked candidates across goroutines and emits a debug
// line every interval candidates.
type progress struct {
	prev     uint64
	interval uint64
	start    time.Time
	checked  atomic.Uint64
	next     atomic.Uint64
}

func newProgress(prev, interval uint64, start time.Time) *progress {
	pr := &progress{prev: prev, interval: interval, start: start}
	pr.next.Store(interval)
	return pr
}

func (pr *progress) add(n uint64) {
	total := pr.checked.Add(n)
	if pr.interval == 0 {
		return
	}
	next := pr.next.Load()
	if total < next || !pr.next.CompareAndSwap(next, next+pr.interval) {
		return
	}
	elapsed := time.Since(pr.start)
	rate := float64(total) / elapsed.Seconds()
	klog.Consensus.Debug().
		Uint64("prev_proof", pr.prev).
		Uint64("checked", total).
		Float64("hashes_per_sec", rate).
		Msg("Proof search progress")
}

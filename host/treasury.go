package host

import (
	"strings"
	"sync"

	"animica.dev/capabilities/capconfig"
	"animica.dev/capabilities/caperrors"
	"animica.dev/capabilities/jobs"
)

type ledgerKey struct {
	chainID int64
	height  int64
	txHash  string
}

// Ledger is the unlocked-by-design-elsewhere treasury bucket store of
// spec.md §4.6: one bucket per (chain_id, height, tx_hash), appended to
// in deterministic order. spec.md §5 notes the ledger is "accessed by
// one writer per tx (enforced by single-threaded tx execution
// upstream)"; the mutex here is defensive, not load-bearing.
type Ledger struct {
	mu      sync.Mutex
	buckets map[ledgerKey][]jobs.TreasuryNote
	sums    map[sumKey]uint64
}

// sumKey keys the running sums: debits and credits of one bucket are
// summed separately, each against its own per-tx cap.
type sumKey struct {
	bucket ledgerKey
	op     jobs.TreasuryOp
}

// NewLedger returns an empty treasury ledger.
func NewLedger() *Ledger {
	return &Ledger{buckets: make(map[ledgerKey][]jobs.TreasuryNote), sums: make(map[sumKey]uint64)}
}

func key(chainID, height int64, txHash []byte) ledgerKey {
	return ledgerKey{chainID: chainID, height: height, txHash: string(txHash)}
}

func (l *Ledger) append(k ledgerKey, op jobs.TreasuryOp, amount uint64, reason string, cap uint64) (jobs.TreasuryNote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sk := sumKey{bucket: k, op: op}
	if l.sums[sk]+amount < l.sums[sk] {
		return jobs.TreasuryNote{}, caperrors.New(caperrors.LimitExceeded, "treasury: running sum overflow")
	}
	newSum := l.sums[sk] + amount
	if cap > 0 && newSum > cap {
		return jobs.TreasuryNote{}, caperrors.Newf(caperrors.LimitExceeded, "treasury: per-tx cap %d exceeded (running sum would be %d)", cap, newSum)
	}

	note := jobs.TreasuryNote{Op: op, Amount: amount, Reason: reason, Index: len(l.buckets[k])}
	l.buckets[k] = append(l.buckets[k], note)
	l.sums[sk] = newSum
	return note, nil
}

// PeekTxLedger returns the notes appended so far for (chain_id, height,
// tx_hash), in append order.
func (l *Ledger) PeekTxLedger(chainID, height int64, txHash []byte) []jobs.TreasuryNote {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key(chainID, height, txHash)
	out := make([]jobs.TreasuryNote, len(l.buckets[k]))
	copy(out, l.buckets[k])
	return out
}

// ResetTxLedger clears the bucket, used after settlement.
func (l *Ledger) ResetTxLedger(chainID, height int64, txHash []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key(chainID, height, txHash)
	delete(l.buckets, k)
	delete(l.sums, sumKey{bucket: k, op: jobs.OpDebit})
	delete(l.sums, sumKey{bucket: k, op: jobs.OpCredit})
}

// normalizeReason implements spec.md §4.6's reason normalization: ASCII
// only, spaces to underscores, truncated to maxLen.
func normalizeReason(reason string, maxLen int) (string, error) {
	for _, r := range reason {
		if r > 0x7F {
			return "", caperrors.New(caperrors.InvalidInput, "treasury: reason must be ASCII")
		}
	}
	normalized := strings.ReplaceAll(reason, " ", "_")
	if len(normalized) > maxLen {
		normalized = normalized[:maxLen]
	}
	return normalized, nil
}

func extractAmount(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint:
		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, caperrors.New(caperrors.InvalidInput, "treasury: amount must be non-negative")
		}
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, caperrors.New(caperrors.InvalidInput, "treasury: amount must be non-negative")
		}
		return uint64(n), nil
	default:
		return 0, caperrors.Newf(caperrors.InvalidInput, "treasury: amount has unsupported type %T", v)
	}
}

func treasuryHandler(cfg *capconfig.Config, ledger *Ledger, op jobs.TreasuryOp, cap uint64) Handler {
	return func(ctx jobs.SyscallContext, kwargs map[string]any) (any, error) {
		amount, err := extractAmount(kwargs["amount"])
		if err != nil {
			return nil, err
		}
		reasonRaw, _ := kwargs["reason"].(string)
		reason, err := normalizeReason(reasonRaw, cfg.Limits.MaxReasonBytes)
		if err != nil {
			return nil, err
		}

		note, err := ledger.append(key(ctx.ChainID, ctx.Height, ctx.TxHash), op, amount, reason, cap)
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"op":     string(note.Op),
			"amount": note.Amount,
			"reason": note.Reason,
			"index":  int64(note.Index),
		}, nil
	}
}

// NewTreasuryDebit builds treasury.debit, spec.md §4.6.
func NewTreasuryDebit(cfg *capconfig.Config, ledger *Ledger) Handler {
	return treasuryHandler(cfg, ledger, jobs.OpDebit, cfg.Limits.MaxDebitPerTx)
}

// NewTreasuryCredit builds treasury.credit, spec.md §4.6.
func NewTreasuryCredit(cfg *capconfig.Config, ledger *Ledger) Handler {
	return treasuryHandler(cfg, ledger, jobs.OpCredit, cfg.Limits.MaxCreditPerTx)
}

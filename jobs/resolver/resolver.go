// Package resolver folds a sealed block's proof envelopes into
// ResultRecords, per spec.md §4.10. Grounded on
// clients/go/node/p2p/envelope.go's structured-decode-with-classification
// style (deleted from this tree, DESIGN.md): type tag -> body ->
// targeted field extraction, never panics, and a bad single envelope
// is logged and skipped rather than aborting the whole batch.
package resolver

import (
	"context"
	"log/slog"

	"animica.dev/capabilities/adapters"
	"animica.dev/capabilities/capcbor"
	"animica.dev/capabilities/capdigest"
	"animica.dev/capabilities/jobs"
	"animica.dev/capabilities/jobs/resultstore"
)

// BlockContext is the per-block input spec.md §4.10 describes.
type BlockContext struct {
	ChainID   int64
	Height    int64
	BlockHash []byte
	Timestamp int64
}

// EnvelopeInput is one proof envelope plus the caller/tx context the
// resolver needs for the deterministic-id fallback and for the
// result-store's caller index. Caller and TxHash are best-effort: the
// block-application layer supplies whatever it has at hand. They may
// be empty when the body carries a task id; the deterministic-id
// fallback needs both non-empty, and otherwise the envelope is skipped.
type EnvelopeInput struct {
	Raw    []byte
	Caller []byte
	TxHash []byte
}

// FoldResult tallies what Resolve did across one block's envelopes.
type FoldResult struct {
	Accepted int // newly written ResultRecords
	Skipped  int // non-capability proofs, already-resolved task_ids, or decode/classify failures
}

// Resolve decodes, classifies, and stores every envelope. Decoder may
// be nil, in which case the resolver decodes envelopes itself via the
// canonical codec, expecting a top-level map with type_id/body and
// optional nullifier/task_id keys.
func Resolve(ctx context.Context, block BlockContext, envelopes []EnvelopeInput, store resultstore.Store, decoder adapters.ProofDecoder, logger *slog.Logger) FoldResult {
	if logger == nil {
		logger = slog.Default()
	}

	var result FoldResult
	for i, env := range envelopes {
		accepted, err := resolveOne(block, env, store, decoder)
		if err != nil {
			logger.Warn("capabilities: skipping proof envelope", "index", i, "height", block.Height, "reason", err.Error())
			result.Skipped++
			continue
		}
		if !accepted {
			result.Skipped++
			continue
		}
		result.Accepted++
	}
	return result
}

func resolveOne(block BlockContext, env EnvelopeInput, store resultstore.Store, decoder adapters.ProofDecoder) (bool, error) {
	decoded, err := decodeEnvelope(env.Raw, decoder)
	if err != nil {
		return false, err
	}

	kind, ok := classify(decoded.TypeID, decoded.Body, decoder)
	if !ok {
		return false, nil // non-capability proof, not an error
	}

	taskID, err := extractTaskID(block, env, decoded)
	if err != nil {
		return false, err
	}

	if has, err := store.Has(taskID); err != nil {
		return false, err
	} else if has {
		return false, nil // idempotence: already resolved
	}

	rec := jobs.ResultRecord{
		TaskID:          taskID,
		Kind:            kind,
		Success:         true,
		HeightAvailable: block.Height,
		OutputDigest:    extractBytesField(decoded.Body, "output_digest", "result_digest", "output_hash", "digest"),
		Metrics:         extractMetrics(decoded.Body),
		CompletedAt:     block.Timestamp,
	}
	if providerID, ok := decoded.Body["provider_id"].(string); ok {
		rec.ProviderID = providerID
	}

	if err := store.Put(env.Caller, rec); err != nil {
		return false, err
	}
	return true, nil
}

type decodedEnvelope struct {
	TypeID    uint64
	Body      map[string]any
	Nullifier []byte
	// TopLevelTaskID is only populated by the fallback codec decode
	// path, where the raw map may carry a task_id sibling to type_id
	// and body (adapters.Envelope has no such field).
	TopLevelTaskID []byte
}

func decodeEnvelope(raw []byte, decoder adapters.ProofDecoder) (decodedEnvelope, error) {
	if decoder != nil {
		env, err := decoder.DecodeEnvelope(raw)
		if err != nil {
			return decodedEnvelope{}, err
		}
		return decodedEnvelope{TypeID: env.TypeID, Body: env.Body, Nullifier: env.Nullifier}, nil
	}
	return fallbackDecode(raw)
}

func fallbackDecode(raw []byte) (decodedEnvelope, error) {
	decoded, err := capcbor.Decode(raw)
	if err != nil {
		return decodedEnvelope{}, err
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		return decodedEnvelope{}, errNotAnEnvelope
	}

	var out decodedEnvelope
	switch tid := m["type_id"].(type) {
	case int64:
		out.TypeID = uint64(tid)
	case uint64:
		out.TypeID = tid
	}
	if body, ok := m["body"].(map[string]any); ok {
		out.Body = body
	} else {
		out.Body = map[string]any{}
	}
	if n, ok := m["nullifier"].([]byte); ok {
		out.Nullifier = n
	}
	if t, ok := m["task_id"].([]byte); ok {
		out.TopLevelTaskID = t
	}
	return out, nil
}

// classify implements spec.md §4.10 step 2: type registry first, then
// the key-based heuristic.
func classify(typeID uint64, body map[string]any, decoder adapters.ProofDecoder) (jobs.JobKind, bool) {
	if decoder != nil {
		if name := decoder.NameForTypeID(typeID); name != "" {
			switch {
			case containsFold(name, "ai"):
				return jobs.KindAI, true
			case containsFold(name, "quantum"):
				return jobs.KindQuantum, true
			}
			// Neutral registry name: fall through to the key-based
			// heuristic below rather than giving up.
		}
	}

	aiSignals := []string{"tee", "qos", "traps", "ai_metrics"}
	quantumSignals := []string{"trap", "circuit", "qpu", "shots", "quantum_metrics"}
	if hasAnyKey(body, aiSignals) {
		return jobs.KindAI, true
	}
	if hasAnyKey(body, quantumSignals) {
		return jobs.KindQuantum, true
	}
	return "", false
}

func hasAnyKey(body map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := body[k]; ok {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	sl := []rune(s)
	for i := range sl {
		sl[i] = toLowerRune(sl[i])
	}
	subl := []rune(substr)
	for i := range subl {
		subl[i] = toLowerRune(subl[i])
	}
	lower := string(sl)
	target := string(subl)
	for i := 0; i+len(target) <= len(lower); i++ {
		if lower[i:i+len(target)] == target {
			return true
		}
	}
	return false
}

func toLowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// extractTaskID implements spec.md §4.10 step 3: first hit wins across
// body.task_id, body.job_id, body.request.task_id, the envelope
// top-level, else a deterministic derivation.
func extractTaskID(block BlockContext, env EnvelopeInput, decoded decodedEnvelope) ([32]byte, error) {
	if b := extractBytesField(decoded.Body, "task_id"); b != nil {
		var id [32]byte
		copy(id[:], b)
		return id, nil
	}
	if b := extractBytesField(decoded.Body, "job_id"); b != nil {
		var id [32]byte
		copy(id[:], b)
		return id, nil
	}
	if req, ok := decoded.Body["request"].(map[string]any); ok {
		if b := extractBytesField(req, "task_id"); b != nil {
			var id [32]byte
			copy(id[:], b)
			return id, nil
		}
	}
	if decoded.TopLevelTaskID != nil {
		var id [32]byte
		copy(id[:], decoded.TopLevelTaskID)
		return id, nil
	}

	payloadDigest, err := capdigest.PayloadDigest(decoded.Body)
	if err != nil {
		return [32]byte{}, err
	}
	return capdigest.DeriveTaskIDFromDigest(block.ChainID, block.Height, env.TxHash, env.Caller, payloadDigest)
}

func extractBytesField(body map[string]any, keys ...string) []byte {
	for _, k := range keys {
		if b, ok := body[k].([]byte); ok {
			return b
		}
	}
	return nil
}

func extractMetrics(body map[string]any) map[string]any {
	for _, k := range []string{"metrics", "ai_metrics", "quantum_metrics"} {
		if m, ok := body[k].(map[string]any); ok {
			return m
		}
	}
	return nil
}

var errNotAnEnvelope = decodeError("resolver: decoded value is not an envelope map")

type decodeError string

func (e decodeError) Error() string { return string(e) }

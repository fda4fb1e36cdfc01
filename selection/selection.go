// Package selection implements the beacon-seeded, epoch-stable
// provider ordering of spec.md §4.11: within one epoch every node
// computing Shuffle over the same candidate set reaches the same
// permutation, because the seed is derived solely from the epoch and
// the network's randomness beacon, never from local state.
package selection

import (
	"bytes"
	"math/big"
	"sort"
	"sync"

	"animica.dev/capabilities/capdigest"
	"animica.dev/capabilities/caperrors"
)

// Candidate is anything that can be scored and ordered: selection only
// needs a stable byte identity per candidate.
type Candidate interface {
	KeyBytes() []byte
}

var epochSeedCache sync.Map // key: string(beaconSeed)+":"+u64BE(epoch) -> [32]byte

// epochSeed computes (and caches by (beaconSeed, epoch)) spec.md
// §4.11's epoch_seed = SHA3-256(DOMAIN_ASSIGN || ":epoch:" ||
// u64BE(epoch) || beacon_seed).
func epochSeed(beaconSeed []byte, epoch uint64) [32]byte {
	cacheKey := string(beaconSeed) + ":" + string(capdigest.U64BE(epoch))
	if cached, ok := epochSeedCache.Load(cacheKey); ok {
		return cached.([32]byte)
	}
	seed := capdigest.SHA3_256(capdigest.DomainAssign, []byte(":epoch:"), capdigest.U64BE(epoch), beaconSeed)
	epochSeedCache.Store(cacheKey, seed)
	return seed
}

// score implements spec.md §4.11's score(p) = int(SHA3-256(DOMAIN_ASSIGN
// || ":score:" || epoch_seed || salt || key_bytes(p))), treating the
// digest as a big-endian unsigned integer so ordering is total and
// deterministic.
func score(epochSeed [32]byte, salt []byte, keyBytes []byte) *big.Int {
	digest := capdigest.SHA3_256(capdigest.DomainAssign, []byte(":score:"), epochSeed[:], salt, keyBytes)
	return new(big.Int).SetBytes(digest[:])
}

// Shuffle returns candidates permuted by spec.md §4.11's beacon-seeded
// deterministic ordering for the given height. epoch_blocks must be
// positive and height non-negative. Candidates are stably
// de-duplicated by key bytes (first occurrence wins) before scoring.
func Shuffle[C Candidate](candidates []C, height int64, epochBlocks int64, salt []byte, beaconSeed []byte) ([]C, error) {
	if epochBlocks <= 0 {
		return nil, caperrors.New(caperrors.InvalidInput, "selection: epoch_blocks must be > 0")
	}
	if height < 0 {
		return nil, caperrors.New(caperrors.InvalidInput, "selection: height must be >= 0")
	}

	deduped := dedupeByKeyBytes(candidates)

	epoch := uint64(height) / uint64(epochBlocks)
	seed := epochSeed(beaconSeed, epoch)

	type scored struct {
		candidate C
		keyBytes  []byte
		score     *big.Int
	}
	entries := make([]scored, len(deduped))
	for i, c := range deduped {
		kb := c.KeyBytes()
		entries[i] = scored{candidate: c, keyBytes: kb, score: score(seed, salt, kb)}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		cmp := entries[i].score.Cmp(entries[j].score)
		if cmp != 0 {
			return cmp < 0
		}
		return bytes.Compare(entries[i].keyBytes, entries[j].keyBytes) < 0
	})

	out := make([]C, len(entries))
	for i, e := range entries {
		out[i] = e.candidate
	}
	return out, nil
}

// dedupeByKeyBytes keeps the first occurrence of each distinct key
// byte sequence, preserving input order for the survivors.
func dedupeByKeyBytes[C Candidate](candidates []C) []C {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]C, 0, len(candidates))
	for _, c := range candidates {
		k := string(c.KeyBytes())
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SampleTopK returns the first k elements of perm, or all of perm if k
// >= len(perm).
func SampleTopK[C Candidate](perm []C, k int) []C {
	if k < 0 {
		k = 0
	}
	if k >= len(perm) {
		out := make([]C, len(perm))
		copy(out, perm)
		return out
	}
	out := make([]C, k)
	copy(out, perm[:k])
	return out
}

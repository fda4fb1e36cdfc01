package selection

import (
	"testing"
)

type stringCandidate string

func (s stringCandidate) KeyBytes() []byte { return []byte(s) }

func candidates(names ...string) []stringCandidate {
	out := make([]stringCandidate, len(names))
	for i, n := range names {
		out[i] = stringCandidate(n)
	}
	return out
}

func TestShuffleIsDeterministicForFixedInputs(t *testing.T) {
	cands := candidates("A", "B", "C", "D")
	p1, err := Shuffle(cands, 128, 64, []byte("AI"), make([]byte, 32))
	if err != nil {
		t.Fatalf("shuffle 1: %v", err)
	}
	p2, err := Shuffle(cands, 128, 64, []byte("AI"), make([]byte, 32))
	if err != nil {
		t.Fatalf("shuffle 2: %v", err)
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("expected identical permutation across calls, got %v vs %v", p1, p2)
		}
	}
}

func TestShuffleDiffersAcrossSalts(t *testing.T) {
	cands := candidates("A", "B", "C", "D", "E", "F", "G", "H")
	pAI, err := Shuffle(cands, 128, 64, []byte("AI"), make([]byte, 32))
	if err != nil {
		t.Fatalf("shuffle AI: %v", err)
	}
	pQPU, err := Shuffle(cands, 128, 64, []byte("QPU"), make([]byte, 32))
	if err != nil {
		t.Fatalf("shuffle QPU: %v", err)
	}
	identical := true
	for i := range pAI {
		if pAI[i] != pQPU[i] {
			identical = false
			break
		}
	}
	if identical {
		t.Fatalf("expected different salts to yield different orderings")
	}
}

func TestShuffleDiffersAcrossEpochs(t *testing.T) {
	cands := candidates("A", "B", "C", "D")
	pEarly, err := Shuffle(cands, 0, 64, []byte("AI"), make([]byte, 32))
	if err != nil {
		t.Fatalf("shuffle early: %v", err)
	}
	pLate, err := Shuffle(cands, 640, 64, []byte("AI"), make([]byte, 32))
	if err != nil {
		t.Fatalf("shuffle late: %v", err)
	}
	identical := true
	for i := range pEarly {
		if pEarly[i] != pLate[i] {
			identical = false
			break
		}
	}
	if identical {
		t.Fatalf("expected different epochs to yield different orderings")
	}
}

func TestSampleTopKReturnsPrefix(t *testing.T) {
	cands := candidates("A", "B", "C", "D")
	perm, err := Shuffle(cands, 128, 64, []byte("AI"), make([]byte, 32))
	if err != nil {
		t.Fatalf("shuffle: %v", err)
	}
	top2 := SampleTopK(perm, 2)
	if len(top2) != 2 || top2[0] != perm[0] || top2[1] != perm[1] {
		t.Fatalf("expected top2 to equal perm[:2], got %v vs %v", top2, perm)
	}
}

func TestSampleTopKReturnsAllWhenKExceedsLength(t *testing.T) {
	cands := candidates("A", "B")
	perm, err := Shuffle(cands, 0, 1, nil, nil)
	if err != nil {
		t.Fatalf("shuffle: %v", err)
	}
	all := SampleTopK(perm, 10)
	if len(all) != 2 {
		t.Fatalf("expected all 2 candidates when k exceeds length, got %d", len(all))
	}
}

func TestShuffleDedupesByKeyBytesKeepingFirstOccurrence(t *testing.T) {
	cands := candidates("A", "B", "A", "C")
	perm, err := Shuffle(cands, 0, 1, nil, nil)
	if err != nil {
		t.Fatalf("shuffle: %v", err)
	}
	if len(perm) != 3 {
		t.Fatalf("expected 3 deduped candidates, got %d: %v", len(perm), perm)
	}
}

func TestShuffleRejectsNonPositiveEpochBlocks(t *testing.T) {
	cands := candidates("A")
	if _, err := Shuffle(cands, 0, 0, nil, nil); err == nil {
		t.Fatalf("expected error for epoch_blocks=0")
	}
	if _, err := Shuffle(cands, 0, -1, nil, nil); err == nil {
		t.Fatalf("expected error for negative epoch_blocks")
	}
}

func TestShuffleRejectsNegativeHeight(t *testing.T) {
	cands := candidates("A")
	if _, err := Shuffle(cands, -1, 64, nil, nil); err == nil {
		t.Fatalf("expected error for negative height")
	}
}

package adapters

import (
	"context"
	"testing"
)

func TestNoopDAPinBlobComputesCommitmentWithoutPersistence(t *testing.T) {
	da := NoopDA{}
	receipt, err := da.PinBlob(context.Background(), 7, []byte("hello"))
	if err != nil {
		t.Fatalf("PinBlob: %v", err)
	}
	if receipt.Receipt != "" {
		t.Fatalf("expected empty Receipt to signal no persistence, got %q", receipt.Receipt)
	}
	if receipt.Namespace != 7 || receipt.Size != 5 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	want := CommitBlob(7, []byte("hello"))
	if string(receipt.Commitment) != string(want) {
		t.Fatalf("commitment mismatch")
	}
}

func TestCommitBlobIsDeterministicAndNamespaceBound(t *testing.T) {
	a := CommitBlob(1, []byte("data"))
	b := CommitBlob(1, []byte("data"))
	c := CommitBlob(2, []byte("data"))
	if string(a) != string(b) {
		t.Fatalf("expected identical commitments for identical inputs")
	}
	if string(a) == string(c) {
		t.Fatalf("expected different commitments for different namespaces")
	}
}

func TestNoopDAGetBlobAlwaysFails(t *testing.T) {
	da := NoopDA{}
	if _, err := da.GetBlob(context.Background(), []byte("x")); err == nil {
		t.Fatalf("expected error, NoopDA has no storage")
	}
}

func TestNoopZKNeverAccepts(t *testing.T) {
	zk := NoopZK{}
	ok, units, err := zk.Verify(context.Background(), []byte("c"), []byte("p"), []byte("i"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("expected NoopZK to never accept")
	}
	if units <= 0 {
		t.Fatalf("expected a positive units estimate, got %d", units)
	}
}

func TestEstimateZKUnitsIsDeterministicAndScalesWithSize(t *testing.T) {
	small := EstimateZKUnits(64, 32, 16)
	large := EstimateZKUnits(6400, 3200, 1600)
	if small != EstimateZKUnits(64, 32, 16) {
		t.Fatalf("expected deterministic estimate for identical sizes")
	}
	if large <= small {
		t.Fatalf("expected larger inputs to yield a larger estimate")
	}
}

func TestEstimateZKUnitsClampsToMax(t *testing.T) {
	units := EstimateZKUnits(1<<30, 1<<30, 1<<30)
	if units != 10_000_000 {
		t.Fatalf("expected clamp to 10_000_000, got %d", units)
	}
}

package host

import (
	"context"
	"testing"

	"animica.dev/capabilities/adapters"
	"animica.dev/capabilities/capconfig"
	"animica.dev/capabilities/jobs"
)

func TestBlobPinFallsBackToNoopDAWhenNoAdapter(t *testing.T) {
	cfg := capconfig.DefaultConfig()
	h := NewBlobPin(&cfg, nil, nil)

	res, err := h(jobs.SyscallContext{}, map[string]any{"namespace": uint32(1), "data": []byte("hello")})
	if err != nil {
		t.Fatalf("blob.pin: %v", err)
	}
	m := res.(map[string]any)
	if m["persistence"] != "none" {
		t.Fatalf("expected persistence=none with no adapter, got %v", m["persistence"])
	}
	if len(m["commitment"].([]byte)) != 32 {
		t.Fatalf("expected 32-byte commitment, got %v", m["commitment"])
	}
}

func TestBlobPinRejectsEmptyData(t *testing.T) {
	cfg := capconfig.DefaultConfig()
	h := NewBlobPin(&cfg, nil, nil)

	_, err := h(jobs.SyscallContext{}, map[string]any{"namespace": uint32(1), "data": []byte{}})
	if err == nil {
		t.Fatalf("expected error for empty data")
	}
}

func TestBlobPinRejectsOversizeData(t *testing.T) {
	cfg := capconfig.DefaultConfig()
	cfg.Limits.MaxBlobBytes = 4
	h := NewBlobPin(&cfg, nil, nil)

	_, err := h(jobs.SyscallContext{}, map[string]any{"namespace": uint32(1), "data": []byte("too big")})
	if err == nil {
		t.Fatalf("expected error for oversize data")
	}
}

type fakeDA struct {
	receipt string
}

func (f fakeDA) PinBlob(ctx context.Context, namespace uint32, data []byte) (adapters.BlobReceipt, error) {
	return adapters.BlobReceipt{
		Commitment: adapters.CommitBlob(namespace, data),
		Namespace:  namespace,
		Size:       len(data),
		Receipt:    f.receipt,
	}, nil
}

func (fakeDA) GetBlob(ctx context.Context, commitment []byte) ([]byte, error) { return nil, nil }

func TestBlobPinUsesAdapterWhenPresent(t *testing.T) {
	cfg := capconfig.DefaultConfig()
	h := NewBlobPin(&cfg, fakeDA{receipt: "handle-1"}, nil)

	res, err := h(jobs.SyscallContext{}, map[string]any{"namespace": uint32(1), "data": []byte("hello")})
	if err != nil {
		t.Fatalf("blob.pin: %v", err)
	}
	m := res.(map[string]any)
	if m["persistence"] != "adapter" {
		t.Fatalf("expected persistence=adapter, got %v", m["persistence"])
	}
}

package host

import "animica.dev/capabilities/jobs"

// BlobPin is the typed convenience wrapper spec.md §4.5 calls for,
// validating that blob.pin's handler returned the expected shape.
func (r *Registry) BlobPin(ctx jobs.SyscallContext, namespace uint32, data []byte) (map[string]any, error) {
	res, err := r.Call(KeyBlobPin, ctx, map[string]any{"namespace": namespace, "data": data})
	if err != nil {
		return nil, err
	}
	return asMap(res, KeyBlobPin)
}

func (r *Registry) AIEnqueue(ctx jobs.SyscallContext, model string, prompt []byte) (map[string]any, error) {
	res, err := r.Call(KeyComputeAIEnqueue, ctx, map[string]any{"model": model, "prompt": prompt})
	if err != nil {
		return nil, err
	}
	return asMap(res, KeyComputeAIEnqueue)
}

func (r *Registry) QuantumEnqueue(ctx jobs.SyscallContext, circuit any, shots uint32, extras map[string]any) (map[string]any, error) {
	res, err := r.Call(KeyComputeQuantumEnqueue, ctx, map[string]any{"circuit": circuit, "shots": shots, "extras": extras})
	if err != nil {
		return nil, err
	}
	return asMap(res, KeyComputeQuantumEnqueue)
}

func (r *Registry) ResultRead(ctx jobs.SyscallContext, taskID [32]byte, consume bool) (map[string]any, error) {
	res, err := r.Call(KeyResultRead, ctx, map[string]any{"task_id": taskID[:], "consume": consume})
	if err != nil {
		return nil, err
	}
	return asMap(res, KeyResultRead)
}

func (r *Registry) ZKVerify(ctx jobs.SyscallContext, circuit, proof, publicInput []byte) (map[string]any, error) {
	res, err := r.Call(KeyZKVerify, ctx, map[string]any{"circuit": circuit, "proof": proof, "public_input": publicInput})
	if err != nil {
		return nil, err
	}
	m, err := asMap(res, KeyZKVerify)
	if err != nil {
		return nil, err
	}
	if _, err := asBool(m["ok"], KeyZKVerify+".ok"); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Registry) RandomBytes(ctx jobs.SyscallContext, length uint, personalization map[string]any) ([]byte, error) {
	res, err := r.Call(KeyRandomBytes, ctx, map[string]any{"length": length, "personalization": personalization})
	if err != nil {
		return nil, err
	}
	return asBytes(res, KeyRandomBytes)
}

func (r *Registry) TreasuryDebit(ctx jobs.SyscallContext, amount uint64, reason string) (map[string]any, error) {
	res, err := r.Call(KeyTreasuryDebit, ctx, map[string]any{"amount": amount, "reason": reason})
	if err != nil {
		return nil, err
	}
	return asMap(res, KeyTreasuryDebit)
}

func (r *Registry) TreasuryCredit(ctx jobs.SyscallContext, amount uint64, reason string) (map[string]any, error) {
	res, err := r.Call(KeyTreasuryCredit, ctx, map[string]any{"amount": amount, "reason": reason})
	if err != nil {
		return nil, err
	}
	return asMap(res, KeyTreasuryCredit)
}

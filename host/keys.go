package host

// Operation keys, spec.md §4.5.
const (
	KeyBlobPin               = "blob.pin"
	KeyComputeAIEnqueue      = "compute.ai.enqueue"
	KeyComputeQuantumEnqueue = "compute.quantum.enqueue"
	KeyResultRead            = "result.read"
	KeyZKVerify              = "zk.verify"
	KeyRandomBytes           = "random.bytes"
	KeyTreasuryDebit         = "treasury.debit"
	KeyTreasuryCredit        = "treasury.credit"
)

package jobs

import "animica.dev/capabilities/capdigest"

// DeriveTaskID binds a JobRequest to a task id given the originating
// syscall context. It is the thin jobs-level wrapper spec.md §4.2
// describes over capdigest.DeriveTaskID.
func DeriveTaskID(ctx SyscallContext, payload map[string]any) ([32]byte, error) {
	return capdigest.DeriveTaskID(ctx.ChainID, ctx.Height, ctx.TxHash, ctx.Caller, payload)
}

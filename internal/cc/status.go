package cc

import "github.com/tnidigan/userspace-resource-manager/internal/infra/cocotable"

// Stats is a point-in-time summary of coordinator load, for the admin
// HTTP status endpoint and the status CLI subcommand.
type Stats struct {
	LiveHandles     int
	QueueDepth      int
	TimerWheelDepth int
	LiveClients     int
}

// Stats reports the coordinator's current load.
func (c *Coordinator) Stats() Stats {
	return Stats{
		LiveHandles:     c.requests.LiveCount(),
		QueueDepth:      c.queue.Depth(),
		TimerWheelDepth: c.wheel.Len(),
		LiveClients:     len(c.cdm.ListLiveClients()),
	}
}

// Snapshot returns the current arbitration winner, or lack of one, for
// every registered scope.
func (c *Coordinator) Snapshot() []cocotable.ScopeSnapshot {
	return c.table.Snapshot()
}

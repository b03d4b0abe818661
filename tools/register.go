package tools

import (
	"go.uber.org/zap"

	agent "github.com/kavrelis/agent-core-go"
)

// RegisterDelegation registers both delegation tools into the given
// registry at the given depth. Pass depth 0 for a root agent; nested
// levels are constructed inside the tools themselves. quota may be nil.
func RegisterDelegation(registry *agent.ToolRegistry, provider agent.Provider, cfg agent.Config, depth int, quota *agent.QuotaTracker, logger *zap.Logger) {
	agent.RegisterTool(registry, NewSubagentTool(provider, registry, cfg, depth, quota, logger))
	agent.RegisterTool(registry, NewParallelSubagentTool(provider, registry, cfg, depth, quota, logger))
}

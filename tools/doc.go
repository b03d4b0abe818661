// Package tools provides the delegation tools: spawning a single subagent
// and fanning a batch of subagents out in parallel.
//
// Use [RegisterDelegation] to wire both into an agent's registry:
//
//	tools.RegisterDelegation(a.Tools(), provider, a.Config(), 0, quota, logger)
//
// Delegation is recursive up to the configured depth ceiling. A subagent's
// registry never contains its parent's delegation tools directly; each
// level gets a freshly constructed subagent tool carrying its own depth.
package tools

// Package agent is the execution core of an autonomous coding-agent runtime.
//
// It provides the turn loop that drives a model conversation, dispatches
// tool calls, prunes conversation history under a token budget, and
// enforces shared resource quotas across a tree of delegated subagents.
// The main entry points:
//
//   - [Agent] runs the model/tool turn loop against a [Provider].
//   - [Conversation] holds ordered message history with token accounting
//     and pair-preserving pruning.
//   - [ToolRegistry] maps tool names to executors and derives capability
//     scoped child registries for delegation.
//   - [QuotaTracker] shares execution/token/time ceilings across an agent
//     tree.
//
// # Quick Start
//
//	p, _ := anthropicprovider.New(apiKey, "claude-sonnet-4-5")
//	a, _ := agent.New(p, agent.DefaultConfig())
//	tools.RegisterDelegation(a.Tools(), p, a.Config(), 0, nil, logger)
//	out, err := a.Execute(ctx, "Summarize the failing tests in this repo")
//
// # Sub-packages
//
//   - [tools] provides the subagent and parallel delegation tools.
//   - [provider/anthropic] and [provider/openai] adapt the official SDKs
//     to the [Provider] interface.
//   - [session] provides ConversationStore implementations (FileStore,
//     MemoryStore).
package agent

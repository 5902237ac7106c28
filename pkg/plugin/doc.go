// Package plugin wires a Registry of named plugins to an Orchestrator that
// executes BEFORE/AFTER/ON_ERROR phases in priority order, dispatching
// async plugins to a bounded worker pool.
//
// Example:
//
//	reg := plugin.NewRegistry()
//	reg.RegisterSync(auditPlugin)
//	reg.RegisterAsync(notificationPlugin)
//	orch := plugin.NewOrchestrator(reg, plugin.WithPoolSize(8))
//
//	decision, err := orch.Before(ctx, pc)
//	...
//	if err := orch.After(ctx, pc); err != nil { ... }
//	defer orch.Shutdown(10 * time.Second)
package plugin

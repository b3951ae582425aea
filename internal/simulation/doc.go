// Package simulation drives go/no-go agents through trial loops.
//
// A Runner owns no agent state. Each session builds its own agent and its own
// seeded random source, so sessions are reproducible and independent and can
// run in parallel. Sessions can optionally be persisted to a store.TrialStore
// and traced to a logging.ChoiceLogger.
//
// Usage:
//
//	r := simulation.NewRunner(simulation.WithStore(s))
//	res, err := r.RunTask(ctx, simulation.Subject{ID: "agent-0", Seed: 1},
//	    agent.DefaultConfig(), task.DefaultDesign())
//	fmt.Println(res.Accuracy(), res.FinalScore)
package simulation

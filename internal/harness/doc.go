// Package harness runs dirty-check scenarios against the real engine.
//
// Each run builds the scenario's tree as engine.Scope nodes, registers its
// watches with scripted listeners, executes the steps and evaluates the
// assertions against the resulting trace, the recorded store and the final
// tree data.
//
// # Deterministic Testing
//
// Every run uses:
//   - Sequential run IDs prefixed with the scenario name
//   - A deterministic logical clock for trace sequence numbers
//   - A fake wall clock, so recorded durations are zero
//   - A fresh in-memory SQLite store unless one is supplied
//
// so the same scenario always produces the same trace, byte for byte, and
// traces can be compared with golden files.
//
// # Usage
//
//	sc, err := scenario.Load("testdata/scenarios/change_chain.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(sc)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness

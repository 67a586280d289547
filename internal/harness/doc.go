// Package harness runs scripted scenarios against a live network and
// records what the engine did.
//
// The harness builds the network of a scenario on a fresh engine, executes
// its steps on the control side, renders blocks until every committed
// transaction has been applied, and collects the trace: each drained
// transaction with its jobs, and each property notification with the stamp
// that made it visible. Traces are deterministic, so they are compared
// against golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	network: tone.cue        # CUE file, relative to the scenario
//	select: tone             # network to use, defaults to the first
//	block_size: 4            # sample_rate is also accepted
//	steps:
//	  - prepare: true
//	  - spawn: v1
//	  - set: {source: amp, property: volume, value: 0.25}
//	  - connect: "lfo.out -> amp.in"
//	  - bind: {source: amp, property: volume, channel: 1, signal: cc, param: 7}
//	  - midi: {channel: 1, signal: cc, param: 7, value: 1.0}
//	  - blocks: 2
//	  - check:
//	      - {type: output, source: amp, context: v1, samples: [0.5, 0.5]}
//	  - release: v1
//	assertions:
//	  - type: trace_count
//	    kind: integrate
//	    count: 3
//
// Instead of a file, the network can be given inline CUE text under "cue".
// A step expecting a failure carries "error" with a substring of the
// message; any other step error fails the scenario.
//
// # Assertion Types
//
//   - output: first samples of a source's output channel in one context
//   - master: first samples of the master bus, channel left or right
//   - property: cached value of a property
//   - contexts: number of live contexts of a source, or of the network
//   - trace_contains: a job appears in the trace
//   - trace_order: jobs appear in the given order
//   - trace_count: number of jobs of one kind
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/tone.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness

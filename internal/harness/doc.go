// Package harness provides scenario testing for the select-clause translator.
//
// A scenario names a CUE mapping catalog and a list of queries written in a
// small YAML expression DSL. Each query is built into a query model,
// translated, checked against its expectations and, when rows are given,
// executed through the plan's client-side projector.
//
// # Scenario Format
//
//	name: operators
//	description: "What this scenario validates"
//	catalog: ../catalogs/shop.cue
//	queries:
//	  - name: ages_for_ann
//	    query:
//	      from: {p: Person}
//	      body:
//	        - where: {eq: [{prop: p.Name}, {param: Ann}]}
//	      select: {prop: p.Age}
//	    rows: [[30], [41]]
//	    expect:
//	      hql: "select p.Age from Person p where p.Name = :p0"
//	      parameters: {p0: Ann}
//	      result: [30, 41]
//
// # Expression DSL
//
// Every expression is a single-key mapping:
//
//   - ref: name of a from or join item in scope
//   - prop: dotted member path starting at an item (p.Manager.Name)
//   - const, param: literal values; param becomes a bind parameter
//   - null: type name of a typed null
//   - eq, ne, lt, le, gt, ge, and, or, add, sub, mul, div, mod, coalesce
//   - not, neg, convert, changetype, cond
//   - call: {method, on, args, returns}; static methods are Type.Method
//   - new: anonymous shape, members in document order
//   - object: {class, args} constructor of an unmapped class
//   - array, subquery
//
// # Determinism
//
// Plan ids are drawn from testutil.SequentialIDs prefixed with the scenario
// name (or id_prefix), so golden snapshots are stable across runs. Plan keys
// are hashes and stay out of snapshots; same_key_as checks them instead.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/operators.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness

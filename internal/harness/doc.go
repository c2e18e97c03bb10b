// Package harness runs key serialization conformance scenarios.
//
// A scenario pins a configuration and lists steps that encode keys from
// (type, value) parts or decode wire strings, each with its expected
// outcome. Every step is also checked for round-trip stability: an encoded
// key must decode to itself, and a decoded wire string must re-encode to
// the same bytes.
//
// # Scenario Format
//
//	name: plain_escaping
//	description: "Separator tokens in values are escaped"
//	config:
//	  encoding: plain
//	  types:
//	    - {module: example.com/app, name: User}
//	steps:
//	  - encode:
//	      - {type: "User, example.com/app", value: "a:b"}
//	    expect:
//	      wire: "User, example.com/app{:}a::b"
//	  - decode: "User, example.com/app{:}a:b"
//	    expect:
//	      error: MALFORMED_WIRE_FORMAT
//
// # Golden Snapshots
//
// RunWithGolden records every step's wire, display form and error kind and
// compares the snapshot against testdata/golden/{name}.golden. Regenerate
// with:
//
//	go test ./internal/harness -update
package harness

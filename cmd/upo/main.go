// upo is a unified policy orchestrator for SASE deployments.
//
// It compiles one declarative intent policy into native configurations for a
// firewall (OPNsense), a zero-trust overlay (OpenZiti) and an SD-WAN
// controller (flexiWAN), then plans and applies them against the live
// targets.
//
// Usage:
//
//	# Validate an intent file
//	upo validate --file intent.yaml
//
//	# Compile for all targets and inspect the output
//	upo compile --file intent.yaml --format json
//
//	# Show what would change without touching anything
//	upo plan --file intent.yaml
//
//	# Push the configurations
//	upo apply --file intent.yaml
//
//	# Recompile on every intent change
//	upo watch
//
//	# Compare live targets against the compiled intent
//	upo drift
package main

func main() {
	Execute()
}

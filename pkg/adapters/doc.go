// Package adapters defines the compiler interface shared by the three target
// adapters (firewall/NAT, zero-trust overlay, SD-WAN) and the capability-gap
// machinery they use to avoid the one hazard this design exists to prevent:
// silently dropping or weakening a rule a target cannot express.
package adapters

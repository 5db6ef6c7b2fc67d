// Package finding provides the shared security finding types
// used across all siteprobe probes and the report aggregator.
//
// Probes produce immutable Finding values; the aggregator
// deduplicates, counts, scores, and grades them. Probe packages
// embed ScanResult in their domain result types:
//
//	type PortScanResult struct {
//	    finding.ScanResult
//	    OpenPorts []OpenPort `json:"open_ports,omitempty"`
//	}
package finding

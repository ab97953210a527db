// Package internaldefs holds the metric catalog shared by the Prometheus
// and OTel exporters so both render identical names and bucket layouts.
package internaldefs

// Package stats provides the statistics registration of the REST endpoints.
//
// Every client and server endpoint implements IStatisticCallback and registers
// itself with an ICollector (the process wide Default registry unless configured
// otherwise) while it is open. The registry polls the callbacks on demand (Collect)
// or periodically (Run), empty snapshots are skipped.
//
// Besides the per endpoint snapshots (EndpointStats) the package keeps process wide
// counters of open endpoints, bound servers, deployments and requests which can be
// exposed in the prometheus text format with WritePrometheus.
package stats

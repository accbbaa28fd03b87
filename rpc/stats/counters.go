package stats

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Side of an endpoint in the request counters
const (
	SideClient = "client"
	SideServer = "server"
)

// process wide totals
var (
	endpointsOpen = metrics.GetOrCreateCounter(`restrpc_endpoints_open`)
	serversBound  = metrics.GetOrCreateCounter(`restrpc_servers_bound`)
	deployments   = metrics.GetOrCreateCounter(`restrpc_deployments`)
)

// EndpointOpened counts an endpoint that became ALIVE
func EndpointOpened() {
	endpointsOpen.Inc()
}

// EndpointClosed counts an ALIVE endpoint that was closed
func EndpointClosed() {
	endpointsOpen.Dec()
}

// ServerBound counts a bound server engine
func ServerBound() {
	serversBound.Inc()
}

// ServerUnbound counts a closed server engine
func ServerUnbound() {
	serversBound.Dec()
}

// Deployed counts a deployed provider
func Deployed() {
	deployments.Inc()
}

// Undeployed counts an undeployed provider
func Undeployed() {
	deployments.Dec()
}

// RequestDone counts a finished request of the given side by its result
func RequestDone(side string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`restrpc_requests_total{side=%q,result=%q}`, side, result)).Inc()
}

// OpenEndpoints returns the number of ALIVE endpoints of the process
func OpenEndpoints() uint64 {
	return endpointsOpen.Get()
}

// WritePrometheus writes all counters and the process metrics in the prometheus text format
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}

package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds the configuration of the serve command
type ServerConfig struct {
	// Endpoint is the bind address (host:port) the services are exported on
	Endpoint string
	// Engine is the embedded http server (http, fasthttp)
	Engine string
	// Serializer is the body format (json, gob)
	Serializer string
	// ContextPath is prepended to every resource path
	ContextPath string

	// MetricsEndpoint is the address of the prometheus endpoint, empty disables it
	MetricsEndpoint string
	// StatsIntervalSecond is the period in which statistics are logged, 0 disables it
	StatsIntervalSecond int

	// Logging configuration
	LogLevel string
}

// ToURL converts the server configuration to the export URL
func (c *ServerConfig) ToURL() (*URL, error) {
	u, err := ParseURL(c.Endpoint)
	if err != nil {
		return nil, err
	}
	u.Parameters[ParamServerEngine] = c.Engine
	u.Parameters[ParamSerialization] = c.Serializer
	if c.ContextPath != "" {
		u.Parameters[ParamContextPath] = c.ContextPath
	}
	if c.LogLevel == "debug" {
		u.Parameters[ParamRequestLogging] = "true"
	}
	return u, nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("REST Server")
	addField("Endpoint", c.Endpoint)
	addField("Engine", c.Engine)
	addField("Serializer", c.Serializer)
	addField("Context Path", c.ContextPath)

	addSection("Statistics")
	addField("Metrics Endpoint", c.MetricsEndpoint)
	addField("Interval", fmt.Sprintf("%d sec", c.StatsIntervalSecond))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the configuration of the client commands
type ClientConfig struct {
	// Endpoint is the address of the remote server (host:port)
	Endpoint string
	// Serializer is the body format (json, gob)
	Serializer string
	// ContextPath must match the context path of the server
	ContextPath string

	// MaxConnections caps the pooled connections (total and per route)
	MaxConnections int
	// ConnectTimeoutMillisecond bounds dialing a new connection
	ConnectTimeoutMillisecond int
	// RequestTimeoutMillisecond bounds waiting for a pooled connection and the call itself
	RequestTimeoutMillisecond int
}

// ToURL converts the client configuration to the refer URL
func (c *ClientConfig) ToURL() (*URL, error) {
	u, err := ParseURL(c.Endpoint)
	if err != nil {
		return nil, err
	}
	u.Parameters[ParamSerialization] = c.Serializer
	u.Parameters[ParamMaxClientConnection] = strconv.Itoa(c.MaxConnections)
	u.Parameters[ParamConnectTimeout] = strconv.Itoa(c.ConnectTimeoutMillisecond)
	u.Parameters[ParamRequestTimeout] = strconv.Itoa(c.RequestTimeoutMillisecond)
	if c.ContextPath != "" {
		u.Parameters[ParamContextPath] = c.ContextPath
	}
	return u, nil
}

// String returns a formatted string representation of the configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Endpoint", c.Endpoint))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Serializer", c.Serializer))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Context Path", c.ContextPath))
	sb.WriteString(fmt.Sprintf("  %-22s: %d\n", "Max Connections", c.MaxConnections))
	sb.WriteString(fmt.Sprintf("  %-22s: %d ms\n", "Connect Timeout", c.ConnectTimeoutMillisecond))
	sb.WriteString(fmt.Sprintf("  %-22s: %d ms\n", "Request Timeout", c.RequestTimeoutMillisecond))
	return sb.String()
}

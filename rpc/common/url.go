package common

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// URL parameters
// --------------------------------------------------------------------------

const (
	// ProtocolRest is the protocol name used in endpoint URLs
	ProtocolRest = "rest"

	ParamMaxClientConnection   = "maxClientConnection"
	ParamMaxConnectionPerRoute = "maxConnectionPerRoute"
	ParamConnectTimeout        = "connectTimeout" // milliseconds
	ParamRequestTimeout        = "requestTimeout" // milliseconds
	ParamSerialization         = "serialization"
	ParamServerEngine          = "serverEngine"
	ParamContextPath           = "contextPath"
	ParamRequestLogging        = "requestLogging"

	DefaultMaxClientConnection = 10
	DefaultConnectTimeoutMs    = 1000
	DefaultRequestTimeoutMs    = 1000
	DefaultSerialization       = "json"
	DefaultServerEngine        = "http"
)

// --------------------------------------------------------------------------
// URL (endpoint identity)
// --------------------------------------------------------------------------

// URL identifies an endpoint: an outbound target or an inbound bind address.
// Several services may share one inbound Address().
type URL struct {
	Protocol   string
	Host       string
	Port       int
	Path       string
	Parameters map[string]string
}

// NewURL creates a rest URL for host:port
func NewURL(host string, port int, params map[string]string) *URL {
	if params == nil {
		params = map[string]string{}
	}
	return &URL{
		Protocol:   ProtocolRest,
		Host:       host,
		Port:       port,
		Parameters: params,
	}
}

// ParseURL parses an URL of the form protocol://host:port/path?key=value.
// A missing protocol defaults to rest.
func ParseURL(raw string) (*URL, error) {
	if !strings.Contains(raw, "://") {
		raw = ProtocolRest + "://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", raw, err)
	}

	host, portStr, err := net.SplitHostPort(parsed.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", parsed.Host, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %q", portStr)
	}

	params := make(map[string]string)
	for key, values := range parsed.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	return &URL{
		Protocol:   parsed.Scheme,
		Host:       host,
		Port:       port,
		Path:       strings.Trim(parsed.Path, "/"),
		Parameters: params,
	}, nil
}

// Address returns host:port, the key under which servers are shared
func (u *URL) Address() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// URI returns protocol://host:port/path without parameters
func (u *URL) URI() string {
	uri := fmt.Sprintf("%s://%s", u.Protocol, u.Address())
	if u.Path != "" {
		uri += "/" + u.Path
	}
	return uri
}

// ProtocolKey identifies one exported interface at this address
func (u *URL) ProtocolKey(interfaceName string) string {
	return fmt.Sprintf("%s://%s/%s", u.Protocol, u.Address(), interfaceName)
}

// String returns the URI followed by the parameters in sorted order
func (u *URL) String() string {
	if len(u.Parameters) == 0 {
		return u.URI()
	}
	keys := make([]string, 0, len(u.Parameters))
	for k := range u.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := url.Values{}
	for _, k := range keys {
		values.Set(k, u.Parameters[k])
	}
	return u.URI() + "?" + values.Encode()
}

// Copy returns a deep copy of the URL
func (u *URL) Copy() *URL {
	params := make(map[string]string, len(u.Parameters))
	for k, v := range u.Parameters {
		params[k] = v
	}
	c := *u
	c.Parameters = params
	return &c
}

// --------------------------------------------------------------------------
// Parameter getters
// --------------------------------------------------------------------------

// GetParameter returns the parameter or def if it is unset
func (u *URL) GetParameter(key, def string) string {
	if v, ok := u.Parameters[key]; ok && v != "" {
		return v
	}
	return def
}

// GetIntParameter returns the parameter as int or def if it is unset or malformed
func (u *URL) GetIntParameter(key string, def int) int {
	v, ok := u.Parameters[key]
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		Logger.Warningf("invalid int parameter %s=%s, using default %d", key, v, def)
		return def
	}
	return i
}

// GetBoolParameter returns the parameter as bool or def if it is unset or malformed
func (u *URL) GetBoolParameter(key string, def bool) bool {
	v, ok := u.Parameters[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// GetMillisParameter reads a parameter given in milliseconds as a duration
func (u *URL) GetMillisParameter(key string, defMs int) time.Duration {
	return time.Duration(u.GetIntParameter(key, defMs)) * time.Millisecond
}

package util

import (
	"strings"

	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by the command line tool
	EnvPrefix = "restrpc"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds the client endpoint flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the restrpc server (host:port)"))

	key = "max-connections"
	cmd.PersistentFlags().Int(key, common.DefaultMaxClientConnection, WrapString("Maximum number of pooled connections to the server"))

	key = "connect-timeout"
	cmd.PersistentFlags().Int(key, common.DefaultConnectTimeoutMs, WrapString("Timeout for establishing a connection (in milliseconds)"))

	key = "request-timeout"
	cmd.PersistentFlags().Int(key, 5000, WrapString("Timeout for waiting for a pooled connection and for the call itself (in milliseconds)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig loads the env files and binds viper to the environment.
// The format of the environment variables is RESTRPC_<flag> (e.g. RESTRPC_LOG_LEVEL=debug).
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoint:                  viper.GetString("endpoint"),
		Serializer:                viper.GetString("serializer"),
		ContextPath:               viper.GetString("context-path"),
		MaxConnections:            viper.GetInt("max-connections"),
		ConnectTimeoutMillisecond: viper.GetInt("connect-timeout"),
		RequestTimeoutMillisecond: viper.GetInt("request-timeout"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/restrpc/cmd/util"
	"github.com/ValentinKolb/restrpc/lib/hello"
	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/protocol"
	"github.com/ValentinKolb/restrpc/rpc/server"
	"github.com/ValentinKolb/restrpc/rpc/stats"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Export the demo hello service",
		Long:    `Export the demo hello service with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is RESTRPC_<flag> (e.g. RESTRPC_STATS_INTERVAL=10)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the services will be exported (host:port)"))

	key = "engine"
	ServeCmd.PersistentFlags().String(key, common.DefaultServerEngine, cmdUtil.WrapString("The embedded http server (http, fasthttp)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the prometheus metrics endpoint (e.g. localhost:9090), empty disables it"))

	key = "stats-interval"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Interval in seconds in which endpoint statistics are logged, 0 disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Engine = viper.GetString("engine")
	serveCmdConfig.Serializer = viper.GetString("serializer")
	serveCmdConfig.ContextPath = viper.GetString("context-path")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.StatsIntervalSecond = viper.GetInt("stats-interval")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.StatsIntervalSecond < 0 {
		return fmt.Errorf("stats-interval must not be negative")
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run exports the hello service and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	fmt.Println(serveCmdConfig.String())

	u, err := serveCmdConfig.ToURL()
	if err != nil {
		return err
	}

	provider, err := server.NewProvider(hello.Interface, hello.NewService())
	if err != nil {
		return err
	}

	var filters []server.Filter
	if serveCmdConfig.LogLevel == "debug" {
		filters = append(filters, server.AccessLogFilter)
	}
	p := protocol.NewRestProtocol(protocol.WithServerOptions(server.WithFilters(filters...)))

	exporter, err := p.Export(provider, u)
	if err != nil {
		return err
	}
	fmt.Printf("exported %s on %s\n", hello.Interface.Name, exporter.Server().Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if interval := serveCmdConfig.StatsIntervalSecond; interval > 0 {
		go stats.Default.Run(ctx, time.Duration(interval)*time.Second)
	}

	var metricsServer *http.Server
	if serveCmdConfig.MetricsEndpoint != "" {
		metricsServer = startMetricsServer(serveCmdConfig.MetricsEndpoint)
	}

	<-ctx.Done()
	fmt.Println("shutting down")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	return p.Destroy()
}

// startMetricsServer serves the prometheus metrics on /metrics
func startMetricsServer(address string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		stats.WritePrometheus(w)
	})

	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("metrics endpoint failed: %v\n", err)
		}
	}()
	fmt.Printf("serving metrics on http://%s/metrics\n", address)
	return srv
}

package hello

import (
	"github.com/ValentinKolb/restrpc/cmd/util"
	"github.com/ValentinKolb/restrpc/lib/hello"
	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/protocol"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	restProtocol *protocol.RestProtocol
	referer      *protocol.Referer
	helloClient  *hello.Client

	// HelloCommands represents the hello command group
	HelloCommands = &cobra.Command{
		Use:                "hello",
		Short:              "Call the demo hello service",
		PersistentPreRunE:  setupHelloClient,
		PersistentPostRunE: closeHelloClient,
	}
)

func init() {
	// Add common RPC flags to the hello command
	util.SetupRPCClientFlags(HelloCommands)

	// Add subcommands
	HelloCommands.AddCommand(userCmd)
	HelloCommands.AddCommand(greetCmd)
	HelloCommands.AddCommand(failCmd)
	HelloCommands.AddCommand(pingCmd)
	HelloCommands.AddCommand(perfTestCmd)
}

// setupHelloClient refers the hello service of the configured endpoint
func setupHelloClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	u, err := util.GetClientConfig().ToURL()
	if err != nil {
		return err
	}

	restProtocol = protocol.NewRestProtocol()
	referer, err = restProtocol.Refer(hello.Interface, u)
	if err != nil {
		return err
	}
	helloClient = hello.NewClient(referer)
	return nil
}

// closeHelloClient releases the pooled connections
func closeHelloClient(_ *cobra.Command, _ []string) error {
	if restProtocol == nil {
		return nil
	}
	return restProtocol.Destroy()
}

package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/restrpc/cmd/hello"
	"github.com/ValentinKolb/restrpc/cmd/serve"
	"github.com/ValentinKolb/restrpc/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "restrpc",
		Short: "rpc over plain http resources",
		Long: fmt.Sprintf(`restrpc (v%s)

A REST transport for remote procedure calls written in Go. Every exported
interface method is an http resource, servers bound to the same address
share one port.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of restrpc",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("restrpc v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(hello.HelloCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob)"))
	key = "context-path"
	RootCmd.PersistentFlags().String(key, "", util.WrapString("context path prepended to every resource path (e.g. /api)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dCap/cmd/cstore"
	"github.com/ValentinKolb/dCap/cmd/serve"
	"github.com/ValentinKolb/dCap/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dcap",
		Short: "capped record store",
		Long: fmt.Sprintf(`dCap (v%s)

A bounded, self-truncating record store written in Go. Capped stores
evict their oldest records once a byte or document limit is reached,
oplog stores keep records ordered by their ts field.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dCap",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dCap v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(cstore.CappedStoreCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

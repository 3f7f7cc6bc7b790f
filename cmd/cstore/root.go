package cstore

import (
	"github.com/ValentinKolb/dCap/cmd/util"
	"github.com/ValentinKolb/dCap/lib/store"
	"github.com/ValentinKolb/dCap/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.ICappedStore

	// CappedStoreCommands represents the capped store command group
	CappedStoreCommands = &cobra.Command{
		Use:               "cap",
		Short:             "Perform capped store operations",
		PersistentPreRunE: setupClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags
	util.SetupRPCClientFlags(CappedStoreCommands)

	CappedStoreCommands.PersistentFlags().Int("shard", 100, util.WrapString("ID of the shard to connect to"))

	// Add subcommands
	CappedStoreCommands.AddCommand(insertCmd)
	CappedStoreCommands.AddCommand(getCmd)
	CappedStoreCommands.AddCommand(delCmd)
	CappedStoreCommands.AddCommand(scanCmd)
	CappedStoreCommands.AddCommand(truncateCmd)
	CappedStoreCommands.AddCommand(oplogStartCmd)
	CappedStoreCommands.AddCommand(statsCmd)
	CappedStoreCommands.AddCommand(perfTestCmd)
}

// setupClient initializes the RPC store client
func setupClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	rpcStore, err = client.NewRPCStore(
		util.GetShardID(),
		*util.GetClientConfig(),
		util.GetTransport(),
		s,
	)
	return err
}

package serve

import (
	"fmt"

	cmdUtil "github.com/ValentinKolb/dCap/cmd/util"
	"github.com/ValentinKolb/dCap/rpc/common"
	"github.com/ValentinKolb/dCap/rpc/server"
	"github.com/ValentinKolb/dCap/rpc/transport/http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dCap server",
		Long:    `Start the dCap server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DCAP_<flag> (e.g. DCAP_LOG_LEVEL=debug)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100=capped(4096),200=oplog(1048576)", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=TYPE(MAX_BYTES:MAX_DOCS) where TYPE is one of: capped, oplog. The limits are optional, MAX_DOCS=0 means no record limit (e.g. 100=capped(4096),101=capped(1048576:1000),200=oplog(1048576))"))

	key = "disable-visibility"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Make records visible to readers immediately after they are written instead of after their unit of work finished"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Read and write timeout of the server in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	shards, err := common.ParseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}
	serveCmdConfig.Shards = shards

	if _, err := common.ParseLogLevel(viper.GetString("log-level")); err != nil {
		return err
	}

	serveCmdConfig.DisableVisibility = viper.GetBool("disable-visibility")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.TimeoutSecond <= 0 {
		return fmt.Errorf("timeout must be positive (got %d)", serveCmdConfig.TimeoutSecond)
	}

	return nil
}

// run starts the dCap server
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		http.NewHttpServerTransport(),
		s,
	)

	return serv.Serve()
}

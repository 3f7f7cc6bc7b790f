package util

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/oplog"
	"github.com/ValentinKolb/dCap/rpc/common"
	"github.com/ValentinKolb/dCap/rpc/serializer"
	"github.com/ValentinKolb/dCap/rpc/transport"
	"github.com/ValentinKolb/dCap/rpc/transport/http"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. DCAP_LOG_LEVEL)
	EnvPrefix = "dcap"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var (
		lines []string
		line  strings.Builder
	)

	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > Wrap {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}

	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// InitConfig loads the .env files and makes viper read DCAP_ environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("The address of the dCap server. Multiple endpoints can be specified as a comma-separated list, requests are balanced round-robin"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to try a request"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		RetryCount:    viper.GetInt("transport-retries"),
		Endpoints:     strings.Split(viper.GetString("transport-endpoints"), ","),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetTransport creates the client transport
func GetTransport() transport.IRPCClientTransport {
	return http.NewHttpClientTransport()
}

// GetShardID retrieves the configured shard ID
func GetShardID() uint64 {
	return uint64(viper.GetInt("shard"))
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// ParseRecordID parses a record id argument.
// Besides numbers it accepts "min", "max", "null" and oplog timestamps in the form "secs:inc".
func ParseRecordID(s string) (db.RecordID, error) {
	switch strings.ToLower(s) {
	case "min", "null":
		return db.NullID, nil
	case "max":
		return db.MaxID, nil
	}

	if secs, inc, ok := strings.Cut(s, ":"); ok {
		t, err := strconv.ParseUint(secs, 10, 32)
		if err != nil {
			return db.InvalidID, fmt.Errorf("invalid timestamp seconds %q: %w", secs, err)
		}
		i, err := strconv.ParseUint(inc, 10, 32)
		if err != nil {
			return db.InvalidID, fmt.Errorf("invalid timestamp increment %q: %w", inc, err)
		}
		return oplog.KeyForOpTime(oplog.OpTime{Secs: uint32(t), Inc: uint32(i)})
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return db.InvalidID, fmt.Errorf("invalid record id %q: %w", s, err)
	}
	return db.RecordID(id), nil
}

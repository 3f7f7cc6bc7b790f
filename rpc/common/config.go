package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dCap/lib/oplog"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerShardType string

const (
	ShardTypeCapped ServerShardType = "capped"
	ShardTypeOplog  ServerShardType = "oplog"
)

// DefaultShardMaxBytes is used for shards that are configured without a capacity
const DefaultShardMaxBytes int64 = 4096

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type selects the store mode of the shard
	Type ServerShardType
	// Name of the capped store, oplog shards are named "local.oplog.<id>"
	Name string
	// MaxBytes is the byte capacity of the store
	MaxBytes int64
	// MaxDocs is the record capacity of the store (0 = unbounded)
	MaxDocs int64
}

// ServerConfig holds all configuration parameters for the RPC server.
type ServerConfig struct {
	// Shards served by this server
	Shards []ServerShard

	// DisableVisibility makes every record visible immediately after it is written
	DisableVisibility bool

	// Read and write timeout of the transport
	TimeoutSecond int64

	// HTTP api settings
	Endpoint string

	// Logging configuration
	LogLevel string
}

// ParseShards parses a comma-separated shard list.
// Format: ID=TYPE or ID=TYPE(MAX_BYTES) or ID=TYPE(MAX_BYTES:MAX_DOCS) where TYPE is one of capped, oplog.
//
// Example: "100=capped(4096),101=capped(1048576:1000),200=oplog(1048576)"
func ParseShards(shards string) ([]ServerShard, error) {
	var (
		result []ServerShard
		seen   = make(map[uint64]bool)
	)

	for _, shardConfig := range strings.Split(shards, ",") {
		shardConfig = strings.TrimSpace(shardConfig)
		if shardConfig == "" {
			continue
		}

		parts := strings.SplitN(shardConfig, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", shardConfig)
		}

		// Parse shard ID
		shardID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %v", parts[0], err)
		}
		if seen[shardID] {
			return nil, fmt.Errorf("duplicate shard ID %d", shardID)
		}
		seen[shardID] = true

		shard, err := parseShardType(shardID, strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
		result = append(result, shard)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no shards configured")
	}
	return result, nil
}

// parseShardType parses TYPE, TYPE(MAX_BYTES) or TYPE(MAX_BYTES:MAX_DOCS)
func parseShardType(shardID uint64, s string) (ServerShard, error) {
	shard := ServerShard{
		ShardID:  shardID,
		MaxBytes: DefaultShardMaxBytes,
	}

	typeName, args := s, ""
	if open := strings.Index(s, "("); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return shard, fmt.Errorf("invalid shard type %s: missing closing parenthesis", s)
		}
		typeName, args = s[:open], s[open+1:len(s)-1]
	}

	switch ServerShardType(typeName) {
	case ShardTypeCapped:
		shard.Type = ShardTypeCapped
		shard.Name = fmt.Sprintf("capped.%d", shardID)
	case ShardTypeOplog:
		shard.Type = ShardTypeOplog
		shard.Name = fmt.Sprintf("%s%d", oplog.NamespacePrefix, shardID)
	default:
		return shard, fmt.Errorf("invalid shard type: %s (expected one of: capped, oplog)", typeName)
	}

	if args == "" {
		return shard, nil
	}

	limits := strings.Split(args, ":")
	if len(limits) > 2 {
		return shard, fmt.Errorf("invalid shard limits %s (expected MAX_BYTES or MAX_BYTES:MAX_DOCS)", args)
	}

	maxBytes, err := strconv.ParseInt(strings.TrimSpace(limits[0]), 10, 64)
	if err != nil || maxBytes <= 0 {
		return shard, fmt.Errorf("invalid max bytes %s for shard %d", limits[0], shardID)
	}
	shard.MaxBytes = maxBytes

	if len(limits) == 2 {
		maxDocs, err := strconv.ParseInt(strings.TrimSpace(limits[1]), 10, 64)
		if err != nil || maxDocs < 0 {
			return shard, fmt.Errorf("invalid max docs %s for shard %d", limits[1], shardID)
		}
		shard.MaxDocs = maxDocs
	}

	return shard, nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// RPC settings
	addSection(&sb, "RPC Server")
	addField(&sb, "Endpoint", c.Endpoint)
	addField(&sb, "Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	// Logging configuration
	addSection(&sb, "Logging")
	addField(&sb, "Log Level", c.LogLevel)

	// Shards
	addSection(&sb, "Shards")
	addField(&sb, "Visibility", strconv.FormatBool(!c.DisableVisibility))
	for _, shard := range c.Shards {
		docs := "unbounded"
		if shard.MaxDocs > 0 {
			docs = strconv.FormatInt(shard.MaxDocs, 10)
		}
		addField(&sb, strconv.FormatUint(shard.ShardID, 10),
			fmt.Sprintf("%s %q (max bytes %d, max docs %s)", shard.Type, shard.Name, shard.MaxBytes, docs))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// General Client Settings
	addSection(&sb, "Client Configuration")
	addField(&sb, "Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField(&sb, "Retry Count", strconv.Itoa(c.RetryCount))

	// Endpoints
	addSection(&sb, "Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(&sb, strconv.Itoa(i), endpoint)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Formatting helpers
// --------------------------------------------------------------------------

func addSection(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
}

func addField(sb *strings.Builder, name, value string) {
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
}

package server

import (
	"fmt"
	"io"
	"sort"

	"github.com/ValentinKolb/dCap/lib/db/engines/maple"
	"github.com/ValentinKolb/dCap/lib/lockmgr"
	"github.com/ValentinKolb/dCap/lib/store"
	"github.com/ValentinKolb/dCap/lib/store/capped"
	"github.com/ValentinKolb/dCap/lib/store/lstore"
	"github.com/ValentinKolb/dCap/rpc/common"
	"github.com/ValentinKolb/dCap/rpc/serializer"
	"github.com/ValentinKolb/dCap/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the capped store, the auto-commit store on top of it and the
// adapter that handles requests for the store
type serverShard struct {
	Capped  *capped.Store
	Store   store.ICappedStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *rpcServer {
	return &rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		permits:    lockmgr.NewPermitManager(),
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	permits    lockmgr.IPermitManager
}

// handle decodes a request, lets the adapter of the shard handle it and encodes the response
func (s *rpcServer) handle(shardId uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	if shard, ok := s.shards.Load(shardId); !ok {
		// Case shard does not exist -> error
		respMsg = common.NewErrorResponse(store.RetCInvalidOperation, fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(store.RetCInvalidOperation, fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		respMsg = shard.Adapter.Handle(&msg, shard.Store)
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize %s response for shard %d: %v", respMsg.MsgType, shardId, err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(store.RetCInternalError,
			fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// writeMetrics writes the process metrics followed by the metrics of every shard
func (s *rpcServer) writeMetrics(w io.Writer) {
	metrics.WritePrometheus(w, true)

	var ids []uint64
	s.shards.Range(func(id uint64, _ serverShard) bool {
		ids = append(ids, id)
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if shard, ok := s.shards.Load(id); ok {
			shard.Capped.WritePrometheus(w)
		}
	}
}

// init creates one capped store per configured shard
func (s *rpcServer) init() error {
	if err := common.InitLoggers(s.config); err != nil {
		return err
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof("%s", s.config.String())

	for _, shardConfig := range s.config.Shards {
		if _, exists := s.shards.Load(shardConfig.ShardID); exists {
			return fmt.Errorf("duplicate shard %d", shardConfig.ShardID)
		}

		cappedStore, err := capped.NewCappedStore(maple.NewMapleDB(nil), capped.Options{
			Name:              shardConfig.Name,
			MaxBytes:          shardConfig.MaxBytes,
			MaxDocs:           shardConfig.MaxDocs,
			LogOrdered:        shardConfig.Type == common.ShardTypeOplog,
			Permit:            s.permits.Permit(shardConfig.Name),
			DisableVisibility: s.config.DisableVisibility,
		})
		if err != nil {
			return fmt.Errorf("failed to create store for shard %d: %w", shardConfig.ShardID, err)
		}

		s.shards.Store(shardConfig.ShardID, serverShard{
			Capped:  cappedStore,
			Store:   lstore.NewLocalStore(cappedStore),
			Adapter: NewICappedStoreServerAdapter(),
		})
		Logger.Infof("created %s store %q for shard %d", shardConfig.Type, shardConfig.Name, shardConfig.ShardID)
	}

	Logger.Infof("dCap setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)
	s.transport.RegisterMetrics(s.writeMetrics)

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer
func (s *rpcServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	defer s.Close()
	return s.transport.Listen(s.config)
}

// Close closes the stores of all shards
func (s *rpcServer) Close() {
	s.shards.Range(func(id uint64, shard serverShard) bool {
		if err := shard.Capped.Close(); err != nil {
			Logger.Warningf("failed to close store of shard %d: %v", id, err)
		}
		s.shards.Delete(id)
		return true
	})
}

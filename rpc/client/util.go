package client

import (
	"fmt"

	"github.com/ValentinKolb/dCap/rpc/common"
	"github.com/ValentinKolb/dCap/rpc/serializer"
	"github.com/ValentinKolb/dCap/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends a request to the shard of the client and returns the response.
// Error responses are converted back into store errors, so the error code is preserved.
// The type of the response must match the type of the request.
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	respBytes, err := a.transport.Send(a.shardId, reqBytes)
	if err != nil {
		return nil, fmt.Errorf("RPC ICappedStore (shard %d) - %s failed: %w", a.shardId, req.MsgType, err)
	}

	resp := &common.Message{}
	if err = a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("RPC ICappedStore (shard %d) - invalid response: %w", a.shardId, err)
	}

	if err := resp.ResponseError(); err != nil {
		return nil, err
	}

	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC ICappedStore (shard %d) - Unexpected message type: %s, expected %s", a.shardId, resp.MsgType, req.MsgType)
	}

	return resp, nil
}

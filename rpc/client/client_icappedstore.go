package client

import (
	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/store"
	"github.com/ValentinKolb/dCap/rpc/common"
	"github.com/ValentinKolb/dCap/rpc/serializer"
	"github.com/ValentinKolb/dCap/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.ICappedStore and an error
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.ICappedStore, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Insert(payload []byte) (db.RecordID, error) {
	resp, err := i.invoke(common.NewInsertRequest(payload))
	if err != nil {
		return db.InvalidID, err
	}
	return db.RecordID(resp.ID), nil
}

func (i *rpcStore) InsertMany(payloads [][]byte) ([]db.RecordID, error) {
	resp, err := i.invoke(common.NewInsertManyRequest(payloads))
	if err != nil {
		return nil, err
	}
	return resp.RecordIDs(), nil
}

func (i *rpcStore) Delete(id db.RecordID) error {
	_, err := i.invoke(common.NewDeleteRequest(id))
	return err
}

func (i *rpcStore) Get(id db.RecordID) ([]byte, bool, error) {
	resp, err := i.invoke(common.NewGetRequest(id))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (i *rpcStore) Scan(start db.RecordID, dir db.Direction, limit int) ([]db.Record, error) {
	resp, err := i.invoke(common.NewScanRequest(start, dir, limit))
	if err != nil {
		return nil, err
	}
	return resp.Records()
}

func (i *rpcStore) TruncateAfter(end db.RecordID, inclusive bool) error {
	_, err := i.invoke(common.NewTruncateRequest(end, inclusive))
	return err
}

func (i *rpcStore) FindLowerBoundBefore(start db.RecordID) (db.RecordID, error) {
	resp, err := i.invoke(common.NewLowerBoundRequest(start))
	if err != nil {
		return db.InvalidID, err
	}
	return db.RecordID(resp.ID), nil
}

func (i *rpcStore) Stats() (store.CappedStats, error) {
	resp, err := i.invoke(common.NewStatsRequest())
	if err != nil {
		return store.CappedStats{}, err
	}
	return resp.Stats()
}

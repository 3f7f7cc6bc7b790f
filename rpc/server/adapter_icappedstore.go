package server

import (
	"fmt"

	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/store"
	"github.com/ValentinKolb/dCap/rpc/common"
)

func NewICappedStoreServerAdapter() IRPCServerAdapter {
	return &iCappedStoreServerAdapterImpl{}
}

type iCappedStoreServerAdapterImpl struct{}

func (adapter *iCappedStoreServerAdapterImpl) Handle(req *common.Message, s store.ICappedStore) *common.Message {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTCapInsert:
		id, err := s.Insert(req.Value)
		return common.NewInsertResponse(id, err)
	case common.MsgTCapInsertMany:
		ids, err := s.InsertMany(req.Values)
		return common.NewInsertManyResponse(ids, err)
	case common.MsgTCapDelete:
		err := s.Delete(db.RecordID(req.ID))
		return common.NewDeleteResponse(err)
	case common.MsgTCapGet:
		val, ok, err := s.Get(db.RecordID(req.ID))
		return common.NewGetResponse(val, ok, err)
	case common.MsgTCapScan:
		records, err := s.Scan(db.RecordID(req.ID), req.Direction(), int(req.Limit))
		return common.NewScanResponse(records, err)
	case common.MsgTCapTruncate:
		err := s.TruncateAfter(db.RecordID(req.ID), req.Inclusive)
		return common.NewTruncateResponse(err)
	case common.MsgTCapLowerBound:
		id, err := s.FindLowerBoundBefore(db.RecordID(req.ID))
		return common.NewLowerBoundResponse(id, err)
	case common.MsgTCapStats:
		stats, err := s.Stats()
		return common.NewStatsResponse(stats, err)
	default:
		return common.NewErrorResponse(store.RetCUnsupportedOperation,
			fmt.Sprintf("RPC ICappedStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

package server

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/store"
	"github.com/ValentinKolb/dCap/rpc/common"
	"github.com/ValentinKolb/dCap/rpc/serializer"
	"github.com/ValentinKolb/dCap/rpc/transport"
)

// testTransport records the registered functions instead of listening
type testTransport struct {
	handler transport.ServerHandleFunc
	metrics transport.MetricsWriteFunc
}

func (t *testTransport) RegisterHandler(handler transport.ServerHandleFunc) { t.handler = handler }

func (t *testTransport) RegisterMetrics(metrics transport.MetricsWriteFunc) { t.metrics = metrics }

func (t *testTransport) Listen(common.ServerConfig) error { return nil }

func newTestServer(t *testing.T, shards string) (*testTransport, func(shard uint64, req *common.Message) *common.Message) {
	t.Helper()

	shardConfig, err := common.ParseShards(shards)
	if err != nil {
		t.Fatal(err)
	}

	tt := &testTransport{}
	ser := serializer.NewBinarySerializer()
	s := NewRPCServer(common.ServerConfig{Shards: shardConfig, LogLevel: "error"}, tt, ser)
	if err := s.init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	call := func(shard uint64, req *common.Message) *common.Message {
		data, err := ser.Serialize(*req)
		if err != nil {
			t.Fatal(err)
		}
		var resp common.Message
		if err := ser.Deserialize(tt.handler(shard, data), &resp); err != nil {
			t.Fatal(err)
		}
		return &resp
	}
	return tt, call
}

func TestCappedShard(t *testing.T) {
	_, call := newTestServer(t, "100=capped(4096:3)")

	var ids []db.RecordID
	for i := 0; i < 5; i++ {
		resp := call(100, common.NewInsertRequest([]byte(fmt.Sprintf("r%d", i))))
		if err := resp.ResponseError(); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, db.RecordID(resp.ID))
	}

	resp := call(100, common.NewScanRequest(db.NullID, db.Forward, 0))
	records, err := resp.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 || records[0].ID != ids[2] || string(records[2].Data) != "r4" {
		t.Errorf("expected the newest three records, got %v", records)
	}

	resp = call(100, common.NewGetRequest(ids[0]))
	if resp.Ok {
		t.Errorf("expected record %d to be evicted", ids[0])
	}

	resp = call(100, common.NewTruncateRequest(ids[3], true))
	if err := resp.ResponseError(); err != nil {
		t.Fatal(err)
	}

	resp = call(100, common.NewLowerBoundRequest(db.MaxID))
	if db.RecordID(resp.ID) != ids[2] {
		t.Errorf("expected lower bound %d, got %d", ids[2], resp.ID)
	}

	resp = call(100, common.NewStatsRequest())
	stats, err := resp.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Name != "capped.100" || stats.MaxDocs != 3 || stats.Evictions != 2 || stats.DB.DocCount != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestOplogShard(t *testing.T) {
	_, call := newTestServer(t, "200=oplog(1048576)")

	resp := call(200, common.NewInsertManyRequest([][]byte{
		[]byte(`{"ts":{"t":5,"i":1}}`),
		[]byte(`{"ts":{"t":5,"i":2}}`),
	}))
	if err := resp.ResponseError(); err != nil {
		t.Fatal(err)
	}
	if ids := resp.RecordIDs(); len(ids) != 2 || ids[0] != db.RecordID(5<<32|1) {
		t.Errorf("expected ids derived from the ordering token, got %v", ids)
	}

	resp = call(200, common.NewInsertRequest([]byte(`{"op":"n"}`)))
	if !store.IsCode(resp.ResponseError(), store.RetCMalformedKey) {
		t.Errorf("expected RetCMalformedKey, got %v", resp.ResponseError())
	}

	resp = call(200, common.NewLowerBoundRequest(db.RecordID(5<<32|3)))
	if db.RecordID(resp.ID) != db.RecordID(5<<32|2) {
		t.Errorf("expected the second entry as lower bound, got %d", resp.ID)
	}
}

func TestUnknownShardAndMessage(t *testing.T) {
	tt, call := newTestServer(t, "100=capped")

	resp := call(999, common.NewStatsRequest())
	if resp.MsgType != common.MsgTError || !store.IsCode(resp.ResponseError(), store.RetCInvalidOperation) {
		t.Errorf("expected an invalid operation error, got %+v", resp)
	}

	resp = call(100, &common.Message{MsgType: common.MsgTCustom})
	if !store.IsCode(resp.ResponseError(), store.RetCUnsupportedOperation) {
		t.Errorf("expected an unsupported operation error, got %+v", resp)
	}

	var out common.Message
	if err := serializer.NewBinarySerializer().Deserialize(tt.handler(100, []byte{1}), &out); err != nil {
		t.Fatal(err)
	}
	if out.MsgType != common.MsgTError {
		t.Errorf("expected an error response for a corrupt request, got %s", out.MsgType)
	}
}

func TestMetrics(t *testing.T) {
	tt, call := newTestServer(t, "100=capped,101=capped")

	call(101, common.NewInsertRequest([]byte("x")))

	var buf bytes.Buffer
	tt.metrics(&buf)
	out := buf.String()

	for _, want := range []string{
		`dcap_inserts_total{store="capped.100"} 0`,
		`dcap_inserts_total{store="capped.101"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected metrics to contain %q", want)
		}
	}
	if strings.Index(out, `store="capped.100"`) > strings.Index(out, `store="capped.101"`) {
		t.Error("expected shards in id order")
	}
}

func TestDuplicateShard(t *testing.T) {
	s := NewRPCServer(common.ServerConfig{
		Shards: []common.ServerShard{
			{ShardID: 1, Type: common.ShardTypeCapped, Name: "a", MaxBytes: 10},
			{ShardID: 1, Type: common.ShardTypeCapped, Name: "b", MaxBytes: 10},
		},
	}, &testTransport{}, serializer.NewJSONSerializer())
	defer s.Close()

	if err := s.init(); err == nil {
		t.Error("expected an error for duplicate shard ids")
	}
}

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/movegen/reified/pkg/reified"
	"github.com/movegen/reified/pkg/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coinType = "0x2::coin::Coin<0x2::sui::SUI>"

var coinID = reified.MustParseAddr("0xc0")

func coinBCS(value byte) []byte {
	return append(coinID[:], value, 0, 0, 0, 0, 0, 0, 0)
}

func coinObject() *Object {
	return &Object{
		ObjectID: coinID.String(),
		Version:  "7",
		Type:     coinType,
		BCS: &reified.RawObject{
			DataType: reified.DataTypeMoveObject,
			Type:     coinType,
			BCSBytes: coinBCS(100),
		},
	}
}

func parsedCoinObject() *Object {
	return &Object{
		ObjectID: coinID.String(),
		Content: &reified.ParsedData{
			DataType:          reified.DataTypeMoveObject,
			Type:              coinType,
			HasPublicTransfer: true,
			Fields: map[string]any{
				"id":      map[string]any{"id": coinID.String()},
				"balance": "100",
			},
		},
	}
}

func newRegistry(t *testing.T) *reified.Registry {
	t.Helper()
	reg, err := stdlib.NewRegistry()
	require.NoError(t, err)
	return reg
}

func checkCoin(t *testing.T, inst *reified.Instance) {
	t.Helper()
	assert.Equal(t, coinType, inst.FullTypeName())
	assert.Equal(t, coinID, inst.Field("id"))
	balance := inst.Field("balance").(*reified.Instance)
	assert.Equal(t, uint64(100), balance.Field("value"))
}

func TestMemorySource(t *testing.T) {
	reg := newRegistry(t)
	coin, err := reg.ResolveStruct(coinType)
	require.NoError(t, err)

	src, err := NewMemorySource(coinObject())
	require.NoError(t, err)
	assert.Equal(t, 1, src.Len())

	inst, err := Fetch(context.Background(), src, coin, coinID)
	require.NoError(t, err)
	checkCoin(t, inst)

	inst, err = FetchAny(context.Background(), src, reg, coinID)
	require.NoError(t, err)
	checkCoin(t, inst)

	_, err = Fetch(context.Background(), src, coin, reified.MustParseAddr("0xdead"))
	assert.ErrorIs(t, err, ErrNotFound)

	src.Delete(coinID)
	assert.Zero(t, src.Len())

	_, err = NewMemorySource(&Object{ObjectID: "not-an-id"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.GetObject(ctx, coinID)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecode(t *testing.T) {
	reg := newRegistry(t)
	coin, err := reg.ResolveStruct(coinType)
	require.NoError(t, err)

	t.Run("ParsedContent", func(t *testing.T) {
		inst, err := Decode(coin, parsedCoinObject())
		require.NoError(t, err)
		checkCoin(t, inst)
	})

	t.Run("NoContent", func(t *testing.T) {
		_, err := Decode(coin, &Object{ObjectID: coinID.String()})
		assert.ErrorIs(t, err, ErrNoContent)
	})

	t.Run("WrongType", func(t *testing.T) {
		other, err := reg.ResolveStruct("0x2::coin::Coin<0x2::coin::Other>")
		require.NoError(t, err)
		_, err = Decode(other, coinObject())
		assert.ErrorIs(t, err, reified.ErrTagMismatch)

		balance, err := reg.ResolveStruct("0x2::balance::Balance<0x2::sui::SUI>")
		require.NoError(t, err)
		_, err = Decode(balance, coinObject())
		assert.ErrorIs(t, err, reified.ErrWrongStructKind)
	})

	t.Run("Package", func(t *testing.T) {
		obj := coinObject()
		obj.BCS.DataType = "package"
		_, err := Decode(coin, obj)
		assert.ErrorIs(t, err, reified.ErrUnsupportedSource)
	})

	t.Run("ParseObject", func(t *testing.T) {
		data, err := json.Marshal(parsedCoinObject())
		require.NoError(t, err)
		obj, err := ParseObject(data)
		require.NoError(t, err)
		assert.Equal(t, coinType, obj.TypeName())
		inst, err := Decode(coin, obj)
		require.NoError(t, err)
		checkCoin(t, inst)
	})
}

func TestDirSource(t *testing.T) {
	reg := newRegistry(t)
	dir := NewDirSource(filepath.Join(t.TempDir(), "dump"))

	path, err := dir.Save(coinObject(), true)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".json.br"))
	raw, err := readBrotli(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte(`{"objectId":`)))

	inst, err := FetchAny(context.Background(), dir, reg, coinID)
	require.NoError(t, err)
	checkCoin(t, inst)

	// A plain dump takes precedence over a compressed one.
	plain := parsedCoinObject()
	plain.Version = "8"
	path, err = dir.Save(plain, false)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".json"))
	obj, err := dir.GetObject(context.Background(), coinID)
	require.NoError(t, err)
	assert.Equal(t, "8", obj.Version)

	_, err = dir.GetObject(context.Background(), reified.MustParseAddr("0x1234"))
	assert.ErrorIs(t, err, ErrNotFound)
}

// newNode serves sui_getObject over a websocket from objects, sending a
// notification ahead of every response.
func newNode(t *testing.T, objects ...*Object) string {
	t.Helper()
	byID := make(map[string]*Object)
	for _, o := range objects {
		byID[o.ObjectID] = o
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusInternalError, "")
		ctx := r.Context()
		for {
			var req rpcRequest
			if err := wsjson.Read(ctx, c, &req); err != nil {
				return
			}
			if err := wsjson.Write(ctx, c, map[string]any{"jsonrpc": "2.0", "method": "sui_subscribeEvent"}); err != nil {
				return
			}
			resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
			switch {
			case req.Method != methodGetObject:
				resp["error"] = RPCError{Code: -32601, Message: "method not found"}
			case byID[req.Params[0].(string)] != nil:
				resp["result"] = map[string]any{"data": byID[req.Params[0].(string)]}
			default:
				resp["result"] = map[string]any{"error": map[string]any{"code": "notExists", "object_id": req.Params[0]}}
			}
			if err := wsjson.Write(ctx, c, resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient(t *testing.T) {
	reg := newRegistry(t)
	url := newNode(t, coinObject())

	ctx := context.Background()
	client, err := Dial(ctx, url, WithReadLimit(1<<20))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	inst, err := FetchAny(ctx, client, reg, coinID)
	require.NoError(t, err)
	checkCoin(t, inst)

	_, err = client.GetObject(ctx, reified.MustParseAddr("0xbeef"))
	assert.ErrorIs(t, err, ErrNotFound)

	err = client.Call(ctx, "sui_unknown", nil, nil)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32601, rpcErr.Code)

	// The connection stays usable after an error response.
	obj, err := client.GetObject(ctx, coinID)
	require.NoError(t, err)
	assert.Equal(t, "7", obj.Version)
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/none")
	assert.Error(t, err)
}

package reified

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pairName    = "0xfe::pair::Pair"
	wrapperName = "0xfe::wrapper::Wrapper"
	outerName   = "0xfe::nest::Outer"
	kitchenName = "0xfe::kitchen::Sink"
)

// frameworkDecls mirrors the standard declarations the collapse rules rely
// on.
func frameworkDecls() []*StructDecl {
	return []*StructDecl{
		NewDecl("0x1::option::Option", Param("Element")).Field("vec", "vector<Element>"),
		NewDecl("0x1::string::String").Field("bytes", "vector<u8>"),
		NewDecl("0x1::ascii::String").Field("bytes", "vector<u8>"),
		NewDecl("0x2::url::Url").Field("url", "0x1::ascii::String"),
		NewDecl("0x2::object::ID").Field("bytes", "address"),
		NewDecl("0x2::object::UID").Field("id", "0x2::object::ID"),
		NewDecl("0x2::balance::Balance", PhantomParam("T")).Field("value", "u64"),
		NewDecl("0x2::coin::Coin", PhantomParam("T")).
			Field("id", "0x2::object::UID").
			Field("balance", "0x2::balance::Balance<T>"),
	}
}

func testDecls() []*StructDecl {
	return []*StructDecl{
		NewDecl(pairName, Param("A"), Param("B")).Field("first", "A").Field("second", "B"),
		NewDecl(wrapperName, Param("T")).Field("inner", "0x1::option::Option<T>"),
		NewDecl("0xfe::nest::Inner", Param("T")).Field("value", "T"),
		NewDecl("0xfe::nest::Middle", Param("T"), Param("F")).
			Field("inner", "0xfe::nest::Inner<T>").
			Field("count", "u64"),
		NewDecl(outerName, Param("T")).Field("middle", "0xfe::nest::Middle<T, 0xfe::nest::Fixed>"),
		NewDecl(kitchenName).
			Field("flag", "bool").
			Field("small", "u8").
			Field("mid", "u16").
			Field("word", "u32").
			Field("big", "u64").
			Field("huge", "u128").
			Field("giant", "u256").
			Field("owner", "address").
			Field("data", "vector<u8>").
			Field("list", "vector<u64>").
			Field("name", "0x1::string::String").
			Field("link", "0x2::url::Url").
			Field("id", "0x2::object::UID").
			Field("maybe_count", "0x1::option::Option<u64>").
			Field("nothing", "0x1::option::Option<u64>").
			Field("coin", "0x2::coin::Coin<0x2::sui::SUI>"),
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.RegisterAll(frameworkDecls()))
	require.NoError(t, reg.RegisterAll(testDecls()))
	return reg
}

func pairBytes(first uint64, second bool) []byte {
	data := binary.LittleEndian.AppendUint64(nil, first)
	if second {
		return append(data, 1)
	}
	return append(data, 0)
}

func TestPairBinary(t *testing.T) {
	reg := newTestRegistry(t)
	pair, err := reg.Reified(pairName, U64, Bool)
	require.NoError(t, err)
	assert.Equal(t, "0xfe::pair::Pair<u64,bool>", pair.FullTypeName())
	assert.Equal(t, []string{"u64", "bool"}, pair.TypeArgStrings())

	data := pairBytes(42, true)
	require.Len(t, data, 9)

	inst, err := pair.FromBCS(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), inst.Field("first"))
	assert.Equal(t, true, inst.Field("second"))

	out, err := inst.ToBCS()
	require.NoError(t, err)
	assert.Equal(t, data, out)

	t.Run("Malformed", func(t *testing.T) {
		for name, input := range map[string][]byte{
			"short": data[:8],
			"long":  append(append([]byte{}, data...), 0),
			"bool":  append(append([]byte{}, data[:8]...), 2),
			"empty": nil,
		} {
			_, err := pair.FromBCS(input)
			require.Error(t, err, name)
			assert.ErrorIs(t, err, ErrMalformedBinary, name)

			var de *DecodeError
			require.True(t, errors.As(err, &de), name)
			assert.Equal(t, OpFromBCS, de.Op)
			assert.Equal(t, pair.FullTypeName(), de.Type)
			assert.Equal(t, input, de.Input)
		}
	})

	t.Run("OptionLength", func(t *testing.T) {
		wrapper := reg.MustReified(wrapperName, U8)

		inst, err := wrapper.FromBCS([]byte{1, 9})
		require.NoError(t, err)
		assert.Equal(t, Some(uint8(9)), inst.Field("inner"))

		inst, err = wrapper.FromBCS([]byte{0})
		require.NoError(t, err)
		assert.Equal(t, None(), inst.Field("inner"))

		_, err = wrapper.FromBCS([]byte{2, 1, 2})
		assert.ErrorIs(t, err, ErrMalformedBinary)
		assert.False(t, errors.Is(err, ErrInvalidValue))

		_, err = DecodeBCS(reg.MustReified("0x1::option::Option", U8), []byte{2, 1, 2})
		assert.ErrorIs(t, err, ErrMalformedBinary)
	})
}

// An inner none inside an outer some renders as null, the same as an outer
// none, so the JSON form cannot tell them apart.
func TestNestedOptionJSON(t *testing.T) {
	reg := newTestRegistry(t)
	wrapper := reg.MustReified(wrapperName, reg.MustReified("0x1::option::Option", U8))

	inst, err := wrapper.FromBCS([]byte{1, 0})
	require.NoError(t, err)
	assert.Equal(t, Some(None()), inst.Field("inner"))

	out := inst.ToJSON()
	assert.Nil(t, out["inner"])

	back, err := wrapper.FromJSON(out)
	require.NoError(t, err)
	assert.Equal(t, None(), back.Field("inner"))
	assert.False(t, inst.Equal(back))

	data, err := back.ToBCS()
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, data)

	data, err = inst.ToBCS()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0}, data)
}

func TestWrapperJSON(t *testing.T) {
	reg := newTestRegistry(t)
	wrapper := reg.MustReified(wrapperName, Address)
	hexAddr := "0x" + strings.Repeat("ab", 32)

	doc := `{"$typeName":"` + wrapperName + `","$typeArgs":["address"],"inner":"` + hexAddr + `"}`
	inst, err := wrapper.FromJSONBytes([]byte(doc))
	require.NoError(t, err)

	inner, ok := inst.Get("inner")
	require.True(t, ok)
	opt, ok := inner.(Option)
	require.True(t, ok)
	require.True(t, opt.Valid)
	addr := opt.Value.(Addr)
	for _, b := range addr {
		assert.Equal(t, byte(0xab), b)
	}

	t.Run("SingularTypeArg", func(t *testing.T) {
		doc := `{"$typeName":"` + wrapperName + `","$typeArg":"address","inner":null}`
		inst, err := wrapper.FromJSONBytes([]byte(doc))
		require.NoError(t, err)
		assert.Equal(t, None(), inst.Field("inner"))
	})

	t.Run("ArgumentMismatch", func(t *testing.T) {
		doc := `{"$typeName":"` + wrapperName + `","$typeArgs":["bool"],"inner":"` + hexAddr + `"}`
		inst, err := wrapper.FromJSONBytes([]byte(doc))
		assert.Nil(t, inst)
		assert.ErrorIs(t, err, ErrTagMismatch)
		assert.False(t, errors.Is(err, ErrWrongStructKind))

		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, 0, de.Position)
		assert.Equal(t, "address", de.Expected)
		assert.Equal(t, "bool", de.Got)
	})

	t.Run("NameMismatch", func(t *testing.T) {
		doc := `{"$typeName":"0xfe::wrapper::Other","$typeArgs":["address"],"inner":null}`
		_, err := wrapper.FromJSONBytes([]byte(doc))
		assert.ErrorIs(t, err, ErrWrongStructKind)
		assert.ErrorIs(t, err, ErrTagMismatch)
	})

	t.Run("ArityMismatch", func(t *testing.T) {
		doc := `{"$typeName":"` + wrapperName + `","inner":null}`
		_, err := wrapper.FromJSONBytes([]byte(doc))
		assert.ErrorIs(t, err, ErrTagMismatch)
	})

	t.Run("ToJSON", func(t *testing.T) {
		out := inst.ToJSON()
		assert.Equal(t, wrapperName, out["$typeName"])
		assert.Equal(t, []string{"address"}, out["$typeArgs"])
		assert.Equal(t, hexAddr, out["inner"])
	})
}

func TestNestedGenerics(t *testing.T) {
	reg := newTestRegistry(t)
	outer, err := reg.Reified(outerName, U32)
	require.NoError(t, err)
	assert.Equal(t, "0xfe::nest::Outer<u32>", outer.FullTypeName())

	middleType, ok := outer.FieldType("middle")
	require.True(t, ok)
	assert.Equal(t, "0xfe::nest::Middle<u32,0xfe::nest::Fixed>", middleType.String())
	middle := middleType.(*Struct)
	assert.Equal(t, KindPhantom, middle.TypeArgs()[1].Kind())

	innerType, ok := middle.FieldType("inner")
	require.True(t, ok)
	assert.Equal(t, "0xfe::nest::Inner<u32>", innerType.String())

	data := binary.LittleEndian.AppendUint32(nil, 7)
	data = binary.LittleEndian.AppendUint64(data, 3)
	inst, err := outer.FromBCS(data)
	require.NoError(t, err)

	m := inst.Field("middle").(*Instance)
	assert.Equal(t, "0xfe::nest::Middle<u32,0xfe::nest::Fixed>", m.FullTypeName())
	assert.Equal(t, uint64(3), m.Field("count"))
	in := m.Field("inner").(*Instance)
	assert.Equal(t, uint32(7), in.Field("value"))

	fromFields, err := outer.FromFields(map[string]any{
		"middle": map[string]any{
			"inner": map[string]any{"value": 7},
			"count": "3",
		},
	})
	require.NoError(t, err)
	assert.True(t, inst.Equal(fromFields))

	out, err := inst.ToBCS()
	require.NoError(t, err)
	assert.Equal(t, data, out)

	resolved, err := reg.Resolve("0xfe::nest::Outer< u32 >")
	require.NoError(t, err)
	assert.Same(t, outer, resolved)
}

func newKitchen(t *testing.T, reg *Registry) *Instance {
	t.Helper()
	sink := reg.MustReified(kitchenName)
	maxU128, err := uint256.FromDecimal("340282366920938463463374607431768211455")
	require.NoError(t, err)

	inst, err := sink.New(map[string]any{
		"flag":       true,
		"small":      1,
		"mid":        uint16(500),
		"word":       uint32(70000),
		"big":        uint64(1) << 60,
		"huge":       maxU128,
		"giant":      new(uint256.Int).SetAllOne(),
		"owner":      "0x2",
		"data":       []byte{1, 2, 3},
		"list":       []any{uint64(1), 2},
		"name":       "héllo",
		"link":       "https://example.com",
		"id":         MustParseAddr("0x5"),
		"maybeCount": Some(uint64(9)),
		"nothing":    None(),
		"coin": map[string]any{
			"id":      MustParseAddr("0x6"),
			"balance": map[string]any{"value": 100},
		},
	})
	require.NoError(t, err)
	return inst
}

func TestRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	inst := newKitchen(t, reg)
	sink := inst.Descriptor()

	t.Run("Binary", func(t *testing.T) {
		data, err := inst.ToBCS()
		require.NoError(t, err)
		back, err := sink.FromBCS(data)
		require.NoError(t, err)
		assert.True(t, inst.Equal(back), "got %v", back)
	})

	t.Run("JSON", func(t *testing.T) {
		back, err := sink.FromJSON(inst.ToJSON())
		require.NoError(t, err)
		assert.True(t, inst.Equal(back), "got %v", back)
	})

	t.Run("JSONBytes", func(t *testing.T) {
		data, err := json.Marshal(inst)
		require.NoError(t, err)
		back, err := sink.FromJSONBytes(data)
		require.NoError(t, err)
		assert.True(t, inst.Equal(back), "got %v", back)
	})

	t.Run("JSONShape", func(t *testing.T) {
		out := inst.ToJSONField()
		assert.Equal(t, "1152921504606846976", out["big"])
		assert.Equal(t, "340282366920938463463374607431768211455", out["huge"])
		assert.Equal(t, uint16(500), out["mid"])
		assert.Equal(t, []any{"1", "2"}, out["list"])
		assert.Equal(t, []any{uint8(1), uint8(2), uint8(3)}, out["data"])
		assert.Equal(t, "héllo", out["name"])
		assert.Equal(t, MustParseAddr("0x2").String(), out["owner"])
		assert.Equal(t, "9", out["maybeCount"])
		assert.Nil(t, out["nothing"])
		coin := out["coin"].(map[string]any)
		assert.Equal(t, map[string]any{"value": "100"}, coin["balance"])
		_, hasMarker := out["$typeName"]
		assert.False(t, hasMarker)
		_, hasArgs := inst.ToJSON()["$typeArgs"]
		assert.False(t, hasArgs, "non-generic types carry no $typeArgs")
	})

	t.Run("Immutable", func(t *testing.T) {
		data := inst.Field("data").([]byte)
		data[0] = 99
		assert.Equal(t, []byte{1, 2, 3}, inst.Field("data"))
	})
}

func TestFieldsWithTypes(t *testing.T) {
	reg := newTestRegistry(t)
	coin := reg.MustReified("0x2::coin::Coin", MustPhantom("0x2::sui::SUI"))
	assert.Equal(t, "0x2::coin::Coin<0x2::sui::SUI>", coin.FullTypeName())

	item := FieldsWithTypes{
		Type: "0x0000000000000000000000000000000000000000000000000000000000000002::coin::Coin<0x2::sui::SUI>",
		Fields: map[string]any{
			"id":      map[string]any{"id": "0x5"},
			"balance": "100",
		},
	}
	inst, err := coin.FromFieldsWithTypes(item)
	require.NoError(t, err)
	assert.Equal(t, MustParseAddr("0x5"), inst.Field("id"))
	bal := inst.Field("balance").(*Instance)
	assert.Equal(t, "0x2::balance::Balance<0x2::sui::SUI>", bal.FullTypeName())
	assert.Equal(t, uint64(100), bal.Field("value"))

	t.Run("NestedTyped", func(t *testing.T) {
		outer := reg.MustReified(outerName, U32)
		inst, err := outer.FromFieldsWithTypes(FieldsWithTypes{
			Type: "0xfe::nest::Outer<u32>",
			Fields: map[string]any{
				"middle": map[string]any{
					"type": "0xfe::nest::Middle<u32, 0xfe::nest::Fixed>",
					"fields": map[string]any{
						"count": "3",
						"inner": map[string]any{
							"type":   "0xfe::nest::Inner<u32>",
							"fields": map[string]any{"value": float64(7)},
						},
					},
				},
			},
		})
		require.NoError(t, err)
		m := inst.Field("middle").(*Instance)
		assert.Equal(t, uint32(7), m.Field("inner").(*Instance).Field("value"))
	})

	t.Run("WrongStructKind", func(t *testing.T) {
		_, err := coin.FromFieldsWithTypes(FieldsWithTypes{
			Type:   "0x2::balance::Balance<0x2::sui::SUI>",
			Fields: map[string]any{"value": "1"},
		})
		assert.ErrorIs(t, err, ErrWrongStructKind)
		assert.ErrorIs(t, err, ErrTagMismatch)
	})

	t.Run("WrongArgument", func(t *testing.T) {
		bad := item
		bad.Type = "0x2::coin::Coin<0x3::other::TOKEN>"
		_, err := coin.FromFieldsWithTypes(bad)
		assert.ErrorIs(t, err, ErrTagMismatch)
		assert.False(t, errors.Is(err, ErrWrongStructKind))
	})

	t.Run("ParsedData", func(t *testing.T) {
		inst, err := coin.FromParsedData(ParsedData{
			DataType: DataTypeMoveObject,
			Type:     item.Type,
			Fields:   item.Fields,
		})
		require.NoError(t, err)
		assert.Equal(t, MustParseAddr("0x5"), inst.Field("id"))

		_, err = coin.FromParsedData(ParsedData{DataType: "package"})
		assert.ErrorIs(t, err, ErrUnsupportedSource)
		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, OpFromParsedData, de.Op)
	})

	t.Run("RawObject", func(t *testing.T) {
		data, err := inst.ToBCS()
		require.NoError(t, err)
		back, err := coin.FromRawObject(RawObject{DataType: DataTypeMoveObject, Type: item.Type, BCSBytes: data})
		require.NoError(t, err)
		assert.True(t, inst.Equal(back))

		_, err = coin.FromRawObject(RawObject{DataType: "package", BCSBytes: data})
		assert.ErrorIs(t, err, ErrUnsupportedSource)
	})
}

func TestMissingField(t *testing.T) {
	reg := newTestRegistry(t)
	outer := reg.MustReified(outerName, U32)

	_, err := outer.FromFields(map[string]any{
		"middle": map[string]any{
			"inner": map[string]any{},
			"count": 3,
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingField)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, []string{"middle", "inner", "value"}, de.Path)
	assert.Equal(t, "middle.inner.value", de.FieldPath())
	assert.Equal(t, OpFromFields, de.Op)
	assert.Equal(t, "0xfe::nest::Outer<u32>", de.Type)
	assert.Contains(t, err.Error(), "field middle.inner.value")

	t.Run("VectorIndex", func(t *testing.T) {
		sink := reg.MustReified(kitchenName)
		values := newKitchen(t, reg).Values()
		values["list"] = []any{uint64(1), "not a number"}
		_, err := sink.New(values)
		assert.ErrorIs(t, err, ErrInvalidValue)
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "list[1]", de.FieldPath())
		assert.Equal(t, OpNew, de.Op)
	})
}

func TestPhantomMisuse(t *testing.T) {
	reg := newTestRegistry(t)
	stub := MustPhantom("u64")

	_, err := reg.Reified(pairName, stub, Bool)
	assert.ErrorIs(t, err, ErrPhantomMisuse)
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 0, de.Position)

	_, err = DecodeBCS(stub, pairBytes(1, true)[:8])
	assert.ErrorIs(t, err, ErrPhantomMisuse)
	_, err = DecodeFields(stub, uint64(1))
	assert.ErrorIs(t, err, ErrPhantomMisuse)
	_, err = DecodeFieldsWithTypes(stub, "1")
	assert.ErrorIs(t, err, ErrPhantomMisuse)
	_, err = DecodeJSONField(stub, "1")
	assert.ErrorIs(t, err, ErrPhantomMisuse)
	_, err = EncodeBCS(stub, uint64(1))
	assert.ErrorIs(t, err, ErrPhantomMisuse)
	_, err = LayoutOf(stub)
	assert.ErrorIs(t, err, ErrPhantomMisuse)

	t.Run("FullDescriptorInPhantomPosition", func(t *testing.T) {
		pair := reg.MustReified(pairName, U8, U8)
		coin, err := reg.Reified("0x2::coin::Coin", pair)
		require.NoError(t, err)
		arg := coin.TypeArgs()[0]
		assert.Equal(t, KindPhantom, arg.Kind())
		assert.Equal(t, "0xfe::pair::Pair<u8,u8>", arg.String())
		assert.Same(t, coin, reg.MustReified("0x2::coin::Coin", PhantomOf(pair)))
	})
}

func TestDeterminism(t *testing.T) {
	reg := newTestRegistry(t)
	data := pairBytes(7, false)

	const workers = 16
	var wg sync.WaitGroup
	descs := make([]*Struct, workers)
	insts := make([]*Instance, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := reg.Reified(pairName, U64, Bool)
			if err != nil {
				errs[i] = err
				return
			}
			descs[i] = d
			insts[i], errs[i] = d.FromBCS(data)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, descs[0], descs[i])
		assert.True(t, insts[0].Equal(insts[i]))
	}

	fresh := NewRegistry()
	fresh.MustRegister(testDecls()[0])
	other := fresh.MustReified(pairName, U64, Bool)
	assert.NotSame(t, descs[0], other)
	inst, err := other.FromBCS(data)
	require.NoError(t, err)
	assert.Equal(t, insts[0].ToJSON(), inst.ToJSON())
}

func TestLayout(t *testing.T) {
	reg := newTestRegistry(t)
	pair := reg.MustReified(pairName, U64, Bool)
	l, err := pair.Layout()
	require.NoError(t, err)
	w, fixed := l.FixedWidth()
	assert.True(t, fixed)
	assert.Equal(t, 9, w)
	require.Len(t, l.Fields, 2)
	assert.Equal(t, "first", l.Fields[0].Field)
	assert.Equal(t, "u64", l.Fields[0].Type)

	sink := reg.MustReified(kitchenName)
	l, err = sink.Layout()
	require.NoError(t, err)
	_, fixed = l.FixedWidth()
	assert.False(t, fixed)
	assert.Contains(t, l.String(), "owner: address (32 bytes)")
}

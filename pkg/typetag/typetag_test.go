package typetag

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("Primitive", func(t *testing.T) {
		for name, kind := range primitiveKinds {
			tag, err := Parse(name)
			require.NoError(t, err)
			assert.Equal(t, kind, tag.Kind)
			assert.Equal(t, name, tag.String())
			assert.Empty(t, tag.Params)
		}
	})

	t.Run("StructWithArgs", func(t *testing.T) {
		tag, err := Parse("0x0000000000000000000000000000000000000000000000000000000000000002::coin::Coin<0x2::sui::SUI>")
		require.NoError(t, err)
		want := Struct("0x2", "coin", "Coin", Struct("0x2", "sui", "SUI"))
		if diff := cmp.Diff(want, tag); diff != "" {
			t.Errorf("parsed tag mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, "0x2::coin::Coin", tag.Base())
	})

	t.Run("Whitespace", func(t *testing.T) {
		tag, err := Parse("  0x2::table::Table < address ,\n vector< u8 > >  ")
		require.NoError(t, err)
		assert.Equal(t, "0x2::table::Table<address,vector<u8>>", tag.String())
		assert.Equal(t, "0x2::table::Table<address, vector<u8>>", tag.Display())
	})

	t.Run("DeepNesting", func(t *testing.T) {
		tag, err := Parse("0x1::a::Outer<0x1::b::Middle<0x1::c::Inner<u32>, 0x1::d::Fixed>>")
		require.NoError(t, err)
		assert.Equal(t, 3, tag.Depth())
		inner := tag.Params[0].Params[0]
		assert.Equal(t, "0x1::c::Inner<u32>", inner.String())
		assert.Equal(t, KindU32, inner.Params[0].Kind)
	})
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"u64<u8>",
		"0x2::coin",
		"0x2::coin::Coin<",
		"0x2::coin::Coin<>",
		"0x2::coin::Coin<u8,>",
		"vector<u8, u16>",
		"vector",
		"Foo",
		"std::string::String",
		"0xzz::m::T",
		"0x" + strings.Repeat("1", 65) + "::m::T",
		"0x2::m::T>",
		strings.Repeat("vector<", maxDepth+2) + "u8" + strings.Repeat(">", maxDepth+2),
	}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			_, err := Parse(c)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax), "expected syntax error, got %v", err)
		})
	}
}

func TestCompress(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"short_address", "0x2::sui::SUI", "0x2::sui::SUI"},
		{"long_address", "0x0000000000000000000000000000000000000000000000000000000000000002::sui::SUI", "0x2::sui::SUI"},
		{"zero_address", "0x000::m::T", "0x0::m::T"},
		{"uppercase_hex", "0xABC::m::T", "0xabc::m::T"},
		{"nested", "0x02::coin::Coin< 0x0002::sui::SUI >", "0x2::coin::Coin<0x2::sui::SUI>"},
		{"vector", "vector< 0x01::string::String >", "vector<0x1::string::String>"},
		{"primitive", " u64 ", "u64"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compress(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			again, err := Compress(got)
			require.NoError(t, err)
			assert.Equal(t, got, again, "compression must be idempotent")
		})
	}
}

func TestCompose(t *testing.T) {
	assert.Equal(t, "0x2::sui::SUI", Compose("0x2::sui::SUI"))
	assert.Equal(t, "0x2::coin::Coin<0x2::sui::SUI>", Compose("0x2::coin::Coin", "0x2::sui::SUI"))
	assert.Equal(t, "0x1::p::Pair<u64, bool>", Compose("0x1::p::Pair", "u64", "bool"))

	t.Run("NestingIsAssociative", func(t *testing.T) {
		inner := Compose("0x1::m::B", "0x1::m::C")
		outer := Compose("0x1::m::A", inner)
		direct := MustParse("0x1::m::A<0x1::m::B<0x1::m::C>>")

		parsed, err := Parse(outer)
		require.NoError(t, err)
		if diff := cmp.Diff(direct, parsed); diff != "" {
			t.Errorf("composed tag mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestParseTypeName(t *testing.T) {
	name, args, err := ParseTypeName("0x2::dynamic_field::Field<0x1::string::String, vector<0x02::sui::SUI>>")
	require.NoError(t, err)
	assert.Equal(t, "0x2::dynamic_field::Field", name)
	assert.Equal(t, []string{"0x1::string::String", "vector<0x2::sui::SUI>"}, args)

	name, args, err = ParseTypeName("address")
	require.NoError(t, err)
	assert.Equal(t, "address", name)
	assert.Empty(t, args)
}

func TestMatchArgs(t *testing.T) {
	require.NoError(t, MatchArgs("0x2::coin::Coin<0x2::sui::SUI>",
		[]string{"0x0000000000000000000000000000000000000000000000000000000000000002::sui::SUI"},
		[]string{"0x2::sui::SUI"}))

	err := MatchArgs("0x1::w::Wrapper<bool>", []string{"bool"}, []string{"address"})
	require.Error(t, err)
	var mm *MismatchError
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, 0, mm.Position)
	assert.Equal(t, "address", mm.Expected)
	assert.Equal(t, "bool", mm.Got)
	assert.True(t, errors.Is(err, ErrMismatch))

	err = MatchArgs("0x1::p::Pair<u8>", []string{"u8"}, []string{"u8", "u8"})
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, -1, mm.Position)
	assert.Contains(t, err.Error(), "number of type arguments")
}

func TestAddresses(t *testing.T) {
	long, err := NormalizeAddress("0x2")
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("0", 63)+"2", long)

	short, err := CompressAddress(long)
	require.NoError(t, err)
	assert.Equal(t, "0x2", short)

	_, err = CompressAddress("2")
	assert.Error(t, err)
}

func TestParseGeneric(t *testing.T) {
	params := []string{"T", "U"}

	tag, err := ParseGeneric("0x1::m::Middle<T, 0x1::m::Fixed>", params)
	require.NoError(t, err)
	assert.True(t, tag.IsGeneric())
	assert.Equal(t, "0x1::m::Middle<T,0x1::m::Fixed>", tag.String())
	want := Struct("0x1", "m", "Middle", Param(0, "T"), Struct("0x1", "m", "Fixed"))
	if diff := cmp.Diff(want, tag); diff != "" {
		t.Errorf("ParseGeneric mismatch (-want +got):\n%s", diff)
	}

	sub := tag.Substitute([]TypeTag{Primitive(KindU32)})
	assert.False(t, sub.IsGeneric())
	assert.Equal(t, "0x1::m::Middle<u32,0x1::m::Fixed>", sub.String())

	vec, err := ParseGeneric("vector<U>", params)
	require.NoError(t, err)
	assert.Equal(t, 1, vec.Params[0].Index)

	_, err = Parse("vector<T>")
	assert.ErrorIs(t, err, ErrSyntax, "plain Parse must reject parameter names")

	_, err = ParseGeneric("T<u8>", params)
	assert.ErrorIs(t, err, ErrSyntax)
}

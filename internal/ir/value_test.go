package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("")
	var _ IRValue = IRInt(0)
	var _ IRValue = IRFloat(0)
	var _ IRValue = IRBool(false)
	var _ IRValue = IRArray{}
	var _ IRValue = IRObject{}
}

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...) which sorts before
	// U+FF5E in UTF-16 but after it in UTF-8.
	obj := IRObject{
		"\uff5e":     IRInt(1),
		"\U0001F600": IRInt(2),
		"a":          IRInt(3),
	}

	assert.Equal(t, []string{"a", "\U0001F600", "\uff5e"}, obj.SortedKeys())
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  IRValue
	}{
		{"nil", nil, IRNull{}},
		{"string", "x", IRString("x")},
		{"int", 7, IRInt(7)},
		{"int32", int32(-3), IRInt(-3)},
		{"float", 1.5, IRFloat(1.5)},
		{"bool", true, IRBool(true)},
		{"slice", []any{1, "a"}, IRArray{IRInt(1), IRString("a")}},
		{"map", map[string]any{"k": false}, IRObject{"k": IRBool(false)}},
		{"already ir", IRString("y"), IRString("y")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromGoRejectsUnsupported(t *testing.T) {
	_, err := FromGo(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestToGo(t *testing.T) {
	assert.Nil(t, ToGo(IRNull{}))
	assert.Nil(t, ToGo(nil))
	assert.Equal(t, int64(4), ToGo(IRInt(4)))
	assert.Equal(t, 2.5, ToGo(IRFloat(2.5)))
	assert.Equal(t, []any{"a", true}, ToGo(IRArray{IRString("a"), IRBool(true)}))
}

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(IRNull{}))
	assert.False(t, IsNull(IRString("")))
	assert.False(t, IsNull(IRInt(0)))
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "null", Literal(IRNull{}))
	assert.Equal(t, "'it''s'", Literal(IRString("it's")))
	assert.Equal(t, "42", Literal(IRInt(42)))
	assert.Equal(t, "2.0", Literal(IRFloat(2)))
	assert.Equal(t, "0.25", Literal(IRFloat(0.25)))
	assert.Equal(t, "true", Literal(IRBool(true)))
	assert.Equal(t, "(1, 'b')", Literal(IRArray{IRInt(1), IRString("b")}))
}

func TestMarshalIRValue(t *testing.T) {
	data, err := MarshalIRValue(IRObject{"b": IRInt(1), "a": IRArray{IRNull{}, IRFloat(1.5)}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[null,1.5],"b":1}`, string(data))
}

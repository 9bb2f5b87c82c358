package regmap

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-remregs/remregs"
)

func TestParseWidth(t *testing.T) {
	tests := []struct {
		in   string
		want Width
	}{
		{"8", Width8},
		{"16", Width16},
		{" 32 ", Width32},
		{"mb", WidthMultibyte},
		{"MultiByte", WidthMultibyte},
	}

	for _, tt := range tests {
		w, err := ParseWidth(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, w)
	}

	_, err := ParseWidth("24")
	require.ErrorIs(t, err, ErrInvalidWidth)
}

func TestRegister_YAML(t *testing.T) {
	doc := `
- name: status
  address: 0x10
  width: 8
  read_only: true
- name: setpoint
  address: 17
  width: "16"
  description: target value
- name: serial
  address: 0x3FF
  width: mb
`
	var regs []Register
	require.NoError(t, yaml.Unmarshal([]byte(doc), &regs))
	require.Len(t, regs, 3)

	assert.Equal(t, Register{Name: "status", Address: 0x10, Width: Width8, ReadOnly: true}, regs[0])
	assert.Equal(t, Register{Name: "setpoint", Address: 17, Width: Width16, Description: "target value"}, regs[1])
	assert.Equal(t, WidthMultibyte, regs[2].Width)

	out, err := yaml.Marshal(regs[2])
	require.NoError(t, err)
	assert.Contains(t, string(out), "width: mb")

	var bad []Register
	err = yaml.Unmarshal([]byte("- name: x\n  width: 12\n"), &bad)
	require.ErrorIs(t, err, ErrInvalidWidth)
}

func TestRegister_JSON(t *testing.T) {
	out, err := json.Marshal(Register{Name: "a", Address: 1, Width: Width32})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"a","address":1,"width":"32","read_only":false}`, string(out))
}

func TestNewMap(t *testing.T) {
	m, err := NewMap([]Register{
		{Name: "b", Address: 20, Width: Width16},
		{Name: "a", Address: 10, Width: Width8},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	regs := m.Registers()
	assert.Equal(t, "a", regs[0].Name)
	assert.Equal(t, "b", regs[1].Name)

	r, ok := m.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, uint16(20), r.Address)

	_, ok = m.Lookup("c")
	assert.False(t, ok)
}

func TestNewMap_Errors(t *testing.T) {
	tests := []struct {
		name string
		regs []Register
		err  error
	}{
		{"empty name", []Register{{Address: 1, Width: Width8}}, ErrInvalidRegister},
		{"address too high", []Register{{Name: "x", Address: 0x400, Width: Width8}}, ErrInvalidRegister},
		{"missing width", []Register{{Name: "x", Address: 1}}, ErrInvalidWidth},
		{"duplicate name", []Register{
			{Name: "x", Address: 1, Width: Width8},
			{Name: "x", Address: 2, Width: Width8},
		}, ErrDuplicate},
		{"duplicate address", []Register{
			{Name: "x", Address: 1, Width: Width8},
			{Name: "y", Address: 1, Width: Width16},
		}, ErrDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMap(tt.regs)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseUint(t *testing.T) {
	r8 := Register{Name: "r8", Width: Width8}
	r32 := Register{Name: "r32", Width: Width32}

	v, err := ParseUint(r8, "0xFF")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFF), v)

	v, err = ParseUint(r32, "4294967295")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFFFFFFFF), v)

	_, err = ParseUint(r8, "256")
	require.ErrorIs(t, err, ErrValueOutOfRange)

	_, err = ParseUint(r8, "abc")
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = ParseUint(Register{Name: "mb", Width: WidthMultibyte}, "1")
	require.ErrorIs(t, err, ErrWidthUnsupported)
}

func TestParseHex(t *testing.T) {
	data, err := ParseHex("0xCAFE")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCA, 0xFE}, data)

	data, err = ParseHex(" 01 02 03 ")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	data, err = ParseHex("")
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = ParseHex("abc")
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = ParseHex(strings.Repeat("00", 30))
	require.ErrorIs(t, err, remregs.ErrPayloadTooLarge)
}

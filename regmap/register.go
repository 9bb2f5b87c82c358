// Package regmap gives names to the registers of a remregs peripheral and
// serializes access to its link.
package regmap

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-remregs/remregs"
)

var (
	ErrUnknownRegister  = errors.New("regmap: unknown register")
	ErrReadOnly         = errors.New("regmap: register is read-only")
	ErrInvalidWidth     = errors.New("regmap: invalid register width")
	ErrInvalidValue     = errors.New("regmap: invalid value")
	ErrDuplicate        = errors.New("regmap: duplicate register")
	ErrInvalidRegister  = errors.New("regmap: invalid register")
	ErrValueOutOfRange  = errors.New("regmap: value out of range for register width")
	ErrWidthUnsupported = errors.New("regmap: operation not supported for register width")
)

// Width is the width of a register.
type Width uint8

// Register widths. The zero Width is invalid so that a register defined
// without a width fails validation.
const (
	Width8         Width = 8
	Width16        Width = 16
	Width32        Width = 32
	WidthMultibyte Width = 0xFF
)

// ParseWidth parses "8", "16", "32" or "mb".
func ParseWidth(s string) (Width, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "8":
		return Width8, nil
	case "16":
		return Width16, nil
	case "32":
		return Width32, nil
	case "mb", "multibyte":
		return WidthMultibyte, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidWidth, s)
	}
}

// String returns the configuration name of the width.
func (w Width) String() string {
	switch w {
	case Width8:
		return "8"
	case Width16:
		return "16"
	case Width32:
		return "32"
	case WidthMultibyte:
		return "mb"
	default:
		return fmt.Sprintf("width(%d)", uint8(w))
	}
}

// IsMultibyte returns if the register is variable length.
func (w Width) IsMultibyte() bool { return w == WidthMultibyte }

// Max returns the largest value a fixed-width register holds.
func (w Width) Max() uint64 {
	switch w {
	case Width8:
		return 0xFF
	case Width16:
		return 0xFFFF
	case Width32:
		return 0xFFFFFFFF
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (w Width) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Width) UnmarshalText(text []byte) error {
	v, err := ParseWidth(string(text))
	if err != nil {
		return err
	}
	*w = v

	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Both `width: 16` and
// `width: "mb"` are accepted.
func (w *Width) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected a scalar", ErrInvalidWidth, node.Line)
	}

	return w.UnmarshalText([]byte(node.Value))
}

// MarshalYAML implements yaml.Marshaler.
func (w Width) MarshalYAML() (any, error) {
	return w.String(), nil
}

// Register describes one named register.
type Register struct {
	Name        string `yaml:"name" json:"name"`
	Address     uint16 `yaml:"address" json:"address"`
	Width       Width  `yaml:"width" json:"width"`
	ReadOnly    bool   `yaml:"read_only,omitempty" json:"read_only"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Validate checks the register definition.
func (r Register) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty name at address %d", ErrInvalidRegister, r.Address)
	}

	if r.Address > remregs.MaxAddress {
		return fmt.Errorf("%w: %s: address %d > %d", ErrInvalidRegister, r.Name, r.Address, remregs.MaxAddress)
	}

	switch r.Width {
	case Width8, Width16, Width32, WidthMultibyte:
	default:
		return fmt.Errorf("%w: %s: %s", ErrInvalidWidth, r.Name, r.Width)
	}

	return nil
}

// Map is an immutable set of registers indexed by name.
type Map struct {
	byName map[string]Register
	sorted []Register
}

// NewMap validates regs and builds a Map. Names and addresses must be unique.
func NewMap(regs []Register) (*Map, error) {
	m := &Map{
		byName: make(map[string]Register, len(regs)),
		sorted: make([]Register, 0, len(regs)),
	}

	byAddr := make(map[uint16]string, len(regs))

	for _, r := range regs {
		if err := r.Validate(); err != nil {
			return nil, err
		}

		if _, ok := m.byName[r.Name]; ok {
			return nil, fmt.Errorf("%w: name %q", ErrDuplicate, r.Name)
		}

		if other, ok := byAddr[r.Address]; ok {
			return nil, fmt.Errorf("%w: %q and %q share address %d", ErrDuplicate, other, r.Name, r.Address)
		}

		m.byName[r.Name] = r
		byAddr[r.Address] = r.Name
		m.sorted = append(m.sorted, r)
	}

	sort.Slice(m.sorted, func(i, j int) bool { return m.sorted[i].Address < m.sorted[j].Address })

	return m, nil
}

// Lookup returns the register called name.
func (m *Map) Lookup(name string) (Register, bool) {
	r, ok := m.byName[name]
	return r, ok
}

// Registers returns all registers ordered by address.
func (m *Map) Registers() []Register {
	out := make([]Register, len(m.sorted))
	copy(out, m.sorted)

	return out
}

// Len returns the number of registers.
func (m *Map) Len() int { return len(m.sorted) }

// ParseHex decodes a multibyte register value. An optional 0x prefix and
// spaces between bytes are accepted.
func ParseHex(s string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	clean = strings.ReplaceAll(clean, " ", "")

	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not hex", ErrInvalidValue, s)
	}

	if len(data) > remregs.MaxMultibyteSize {
		return nil, fmt.Errorf("%w: %d bytes", remregs.ErrPayloadTooLarge, len(data))
	}

	return data, nil
}

// ParseUint parses a fixed-width register value in decimal, 0x hex, 0o
// octal or 0b binary notation and checks it fits the register.
func ParseUint(r Register, s string) (uint64, error) {
	if r.Width.IsMultibyte() {
		return 0, fmt.Errorf("%w: %s is multibyte", ErrWidthUnsupported, r.Name)
	}

	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}

	if v > r.Width.Max() {
		return 0, fmt.Errorf("%w: %s: %d > %d", ErrValueOutOfRange, r.Name, v, r.Width.Max())
	}

	return v, nil
}

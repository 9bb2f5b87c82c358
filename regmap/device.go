package regmap

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-remregs/internal/util"
	"github.com/arloliu/go-remregs/logger"
	"github.com/arloliu/go-remregs/remregs"
)

// Value is the content of a register at a point in time.
type Value struct {
	Register Register `json:"register"`

	// Uint holds the value of fixed-width registers.
	Uint uint64 `json:"uint"`
	// Bytes holds the value of multibyte registers.
	Bytes []byte `json:"-"`

	// At is when the value was read or written.
	At time.Time `json:"at"`
	// Cached reports whether the value came from the shadow cache.
	Cached bool `json:"cached"`
}

// Hex returns the value as hex: 0x-prefixed and zero-padded to the width
// for fixed registers, plain bytes for multibyte ones.
func (v Value) Hex() string {
	switch v.Register.Width {
	case Width8:
		return fmt.Sprintf("0x%02X", v.Uint)
	case Width16:
		return fmt.Sprintf("0x%04X", v.Uint)
	case Width32:
		return fmt.Sprintf("0x%08X", v.Uint)
	default:
		return hex.EncodeToString(v.Bytes)
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.Register.Width.IsMultibyte() {
		return fmt.Sprintf("%s = [%d] %s", v.Register.Name, len(v.Bytes), v.Hex())
	}

	return fmt.Sprintf("%s = %s (%d)", v.Register.Name, v.Hex(), v.Uint)
}

// View is the encoding-friendly form of a Value.
type View struct {
	Name    string    `json:"name" yaml:"name"`
	Address uint16    `json:"address" yaml:"address"`
	Width   Width     `json:"width" yaml:"width"`
	Value   string    `json:"value" yaml:"value"`
	Uint    *uint64   `json:"uint,omitempty" yaml:"uint,omitempty"`
	At      time.Time `json:"at" yaml:"at"`
	Cached  bool      `json:"cached" yaml:"cached"`
}

// View returns v in its encoding-friendly form. Value holds Hex; Uint is
// set for fixed-width registers only.
func (v Value) View() View {
	view := View{
		Name:    v.Register.Name,
		Address: v.Register.Address,
		Width:   v.Register.Width,
		Value:   v.Hex(),
		At:      v.At,
		Cached:  v.Cached,
	}

	if !v.Register.Width.IsMultibyte() {
		u := v.Uint
		view.Uint = &u
	}

	return view
}

func (v Value) clone() Value {
	v.Bytes = util.CloneSlice(v.Bytes, 0)
	return v
}

// DeviceOption is a functional option for configuring a Device.
type DeviceOption func(*Device)

// WithCacheDuration keeps read and written values for d. Reads of a cached
// register within d are answered without touching the link. 0 disables
// caching.
func WithCacheDuration(d time.Duration) DeviceOption {
	return func(dev *Device) {
		if d > 0 {
			dev.cacheDuration = d
		}
	}
}

// WithDeviceLogger sets the logger of the device.
func WithDeviceLogger(l logger.Logger) DeviceOption {
	return func(dev *Device) {
		if l != nil {
			dev.logger = l
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) DeviceOption {
	return func(dev *Device) {
		if now != nil {
			dev.now = now
		}
	}
}

// Device is a named register map bound to a link.
//
// Device is goroutine-safe: link access is serialized with a mutex, and the
// shadow cache can be read concurrently.
type Device struct {
	name string
	link *remregs.Link
	regs *Map

	mu sync.Mutex

	cacheDuration time.Duration
	cache         *xsync.MapOf[string, Value]

	now    func() time.Time
	logger logger.Logger
}

// NewDevice binds regs to link.
func NewDevice(name string, link *remregs.Link, regs *Map, opts ...DeviceOption) (*Device, error) {
	if link == nil {
		return nil, errors.New("regmap: link is nil")
	}

	if regs == nil {
		return nil, errors.New("regmap: register map is nil")
	}

	d := &Device{
		name:   name,
		link:   link,
		regs:   regs,
		cache:  xsync.NewMapOf[string, Value](),
		now:    time.Now,
		logger: link.GetLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.logger = d.logger.With("device", name)

	return d, nil
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Map returns the register map.
func (d *Device) Map() *Map { return d.regs }

// Link returns the underlying link.
func (d *Device) Link() *remregs.Link { return d.link }

// Sync runs the link handshake.
func (d *Device) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.link.Sync()
}

// Invalidate drops every cached value.
func (d *Device) Invalidate() {
	d.cache.Clear()
}

func (d *Device) lookup(name string) (Register, error) {
	r, ok := d.regs.Lookup(name)
	if !ok {
		return Register{}, fmt.Errorf("%w: %q", ErrUnknownRegister, name)
	}

	return r, nil
}

func (d *Device) cached(name string) (Value, bool) {
	if d.cacheDuration == 0 {
		return Value{}, false
	}

	v, ok := d.cache.Load(name)
	if !ok || d.now().Sub(v.At) >= d.cacheDuration {
		return Value{}, false
	}

	v = v.clone()
	v.Cached = true

	return v, true
}

func (d *Device) remember(v Value) {
	if d.cacheDuration == 0 {
		return
	}

	d.cache.Store(v.Register.Name, v.clone())
}

// Read returns the value of register name, from the cache when it is fresh.
func (d *Device) Read(name string) (Value, error) {
	r, err := d.lookup(name)
	if err != nil {
		return Value{}, err
	}

	if v, ok := d.cached(name); ok {
		return v, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.read(r)
	if err != nil {
		d.cache.Delete(name)
		return Value{}, err
	}

	d.remember(v)

	return v, nil
}

// ReadAt reads the register at addr without a map entry. The cache is
// neither used nor updated.
func (d *Device) ReadAt(addr uint16, w Width) (Value, error) {
	r, err := rawRegister(addr, w)
	if err != nil {
		return Value{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.read(r)
}

func (d *Device) read(r Register) (Value, error) {
	v := Value{Register: r}

	var err error
	switch r.Width {
	case Width8:
		var b uint8
		b, err = d.link.GetReg8(r.Address)
		v.Uint = uint64(b)
	case Width16:
		var w uint16
		w, err = d.link.GetReg16(r.Address)
		v.Uint = uint64(w)
	case Width32:
		var dw uint32
		dw, err = d.link.GetReg32(r.Address)
		v.Uint = uint64(dw)
	default:
		buf := make([]byte, remregs.MaxMultibyteSize)
		var n int
		n, err = d.link.GetRegMultibyte(r.Address, buf)
		v.Bytes = buf[:n]
	}

	if err != nil {
		d.logger.Debug("regmap: read failed", "register", r.Name, "error", err)
		return Value{}, fmt.Errorf("regmap: read %s: %w", r.Name, err)
	}

	v.At = d.now()

	return v, nil
}

// WriteUint writes a fixed-width register.
func (d *Device) WriteUint(name string, val uint64) error {
	r, err := d.lookup(name)
	if err != nil {
		return err
	}

	if r.ReadOnly {
		return fmt.Errorf("%w: %q", ErrReadOnly, name)
	}

	if r.Width.IsMultibyte() {
		return fmt.Errorf("%w: %s is multibyte", ErrWidthUnsupported, name)
	}

	if val > r.Width.Max() {
		return fmt.Errorf("%w: %s: %d > %d", ErrValueOutOfRange, name, val, r.Width.Max())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.afterWrite(Value{Register: r, Uint: val}, d.writeUint(r, val))
}

// WriteBytes writes a multibyte register.
func (d *Device) WriteBytes(name string, data []byte) error {
	r, err := d.lookup(name)
	if err != nil {
		return err
	}

	if r.ReadOnly {
		return fmt.Errorf("%w: %q", ErrReadOnly, name)
	}

	if !r.Width.IsMultibyte() {
		return fmt.Errorf("%w: %s is %s-bit", ErrWidthUnsupported, name, r.Width)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	err = d.link.SetRegMultibyte(r.Address, data)

	return d.afterWrite(Value{Register: r, Bytes: data}, err)
}

// WriteString parses s for the register width and writes it. Fixed-width
// values use Go integer syntax; multibyte values are hex strings.
func (d *Device) WriteString(name, s string) error {
	r, err := d.lookup(name)
	if err != nil {
		return err
	}

	if r.Width.IsMultibyte() {
		data, err := ParseHex(s)
		if err != nil {
			return err
		}

		return d.WriteBytes(name, data)
	}

	v, err := ParseUint(r, s)
	if err != nil {
		return err
	}

	return d.WriteUint(name, v)
}

// WriteAt parses s for width w and writes it to the register at addr
// without a map entry. Any successful write drops the whole cache since
// addr may alias a named register.
func (d *Device) WriteAt(addr uint16, w Width, s string) error {
	r, err := rawRegister(addr, w)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if w.IsMultibyte() {
		var data []byte
		if data, err = ParseHex(s); err != nil {
			return err
		}
		err = d.link.SetRegMultibyte(addr, data)
	} else {
		var v uint64
		if v, err = ParseUint(r, s); err != nil {
			return err
		}
		err = d.writeUint(r, v)
	}

	if err != nil {
		d.logger.Debug("regmap: write failed", "register", r.Name, "error", err)
		return fmt.Errorf("regmap: write %s: %w", r.Name, err)
	}

	d.Invalidate()

	return nil
}

func (d *Device) writeUint(r Register, val uint64) error {
	switch r.Width {
	case Width8:
		return d.link.SetReg8(r.Address, uint8(val))
	case Width16:
		return d.link.SetReg16(r.Address, uint16(val))
	default:
		return d.link.SetReg32(r.Address, uint32(val))
	}
}

func (d *Device) afterWrite(v Value, err error) error {
	if err != nil {
		d.cache.Delete(v.Register.Name)
		d.logger.Debug("regmap: write failed", "register", v.Register.Name, "error", err)

		return fmt.Errorf("regmap: write %s: %w", v.Register.Name, err)
	}

	v.At = d.now()
	d.remember(v)

	return nil
}

// rawRegister describes an unnamed register, named after its address.
func rawRegister(addr uint16, w Width) (Register, error) {
	r := Register{Name: fmt.Sprintf("@0x%03X", addr), Address: addr, Width: w}
	if err := r.Validate(); err != nil {
		return Register{}, err
	}

	return r, nil
}

// ReadAll reads every register in address order, using the cache where
// fresh. Registers the peer rejects are skipped; any other failure stops
// the scan and is returned with the values read so far.
func (d *Device) ReadAll() ([]Value, error) {
	regs := d.regs.Registers()
	values := make([]Value, 0, len(regs))

	for _, r := range regs {
		v, err := d.Read(r.Name)
		if err != nil {
			if errors.Is(err, remregs.ErrOperationRejected) {
				continue
			}

			return values, err
		}
		values = append(values, v)
	}

	return values, nil
}

// Refresh drops the cache and reads every register from the peer.
func (d *Device) Refresh() ([]Value, error) {
	d.Invalidate()
	return d.ReadAll()
}

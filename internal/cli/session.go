// Package cli implements the interactive register shell of the remregs
// command. Session holds the command logic and returns printable output;
// Shell binds it to an ishell prompt.
package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-remregs/internal/linkmgr"
	"github.com/arloliu/go-remregs/regmap"
	"github.com/arloliu/go-remregs/remregs"
)

var ErrNoLink = errors.New("cli: no link selected")

// Session is the state of one shell: the open links and the current one.
type Session struct {
	// OutputJSON prints results as JSON instead of text.
	OutputJSON bool

	mgr *linkmgr.Manager
	cur *linkmgr.Entry
}

// NewSession creates a session over mgr with its first link selected.
func NewSession(mgr *linkmgr.Manager) *Session {
	s := &Session{mgr: mgr}
	s.cur, _ = mgr.Default()

	return s
}

// Current returns the selected link, nil if there is none.
func (s *Session) Current() *linkmgr.Entry {
	return s.cur
}

func (s *Session) current() (*linkmgr.Entry, error) {
	if s.cur == nil {
		return nil, ErrNoLink
	}

	return s.cur, nil
}

// Prompt returns the shell prompt for the selected link.
func (s *Session) Prompt() string {
	if s.cur == nil {
		return "[none] > "
	}

	return s.cur.Name + " > "
}

type linkInfo struct {
	Name      string `json:"name"`
	Endpoint  string `json:"endpoint"`
	State     string `json:"state"`
	Registers int    `json:"registers"`
	Current   bool   `json:"current"`
}

// Links lists the open links.
func (s *Session) Links() (string, error) {
	infos := make([]linkInfo, 0, s.mgr.Len())

	for _, name := range s.mgr.Names() {
		e, err := s.mgr.Get(name)
		if err != nil {
			return "", err
		}

		infos = append(infos, linkInfo{
			Name:      e.Name,
			Endpoint:  e.Config.Endpoint,
			State:     e.Link().State().String(),
			Registers: e.Device.Map().Len(),
			Current:   e == s.cur,
		})
	}

	if s.OutputJSON {
		return marshalJSON(infos)
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for _, info := range infos {
		mark := " "
		if info.Current {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s\t%s\t%s\t%d registers\n", mark, info.Name, info.Endpoint, info.State, info.Registers)
	}
	_ = w.Flush()

	return strings.TrimRight(buf.String(), "\n"), nil
}

// Use selects the link called name.
func (s *Session) Use(name string) error {
	e, err := s.mgr.Get(name)
	if err != nil {
		return err
	}
	s.cur = e

	return nil
}

// Sync runs the handshake on the selected link.
func (s *Session) Sync() (string, error) {
	e, err := s.current()
	if err != nil {
		return "", err
	}

	if err := e.Device.Sync(); err != nil {
		return "", err
	}

	return s.State()
}

// State reports the synchronization state of the selected link.
func (s *Session) State() (string, error) {
	e, err := s.current()
	if err != nil {
		return "", err
	}

	state := e.Link().State().String()
	if s.OutputJSON {
		return marshalJSON(map[string]string{"link": e.Name, "state": state})
	}

	return state, nil
}

// Registers lists the register definitions of the selected link.
func (s *Session) Registers() (string, error) {
	e, err := s.current()
	if err != nil {
		return "", err
	}

	regs := e.Device.Map().Registers()
	if s.OutputJSON {
		return marshalJSON(regs)
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for _, r := range regs {
		access := "rw"
		if r.ReadOnly {
			access = "ro"
		}
		fmt.Fprintf(w, "%s\t0x%03X\t%s\t%s\t%s\n", r.Name, r.Address, r.Width, access, r.Description)
	}
	_ = w.Flush()

	return strings.TrimRight(buf.String(), " \n"), nil
}

// Get reads the named registers of the selected link.
func (s *Session) Get(names ...string) (string, error) {
	e, err := s.current()
	if err != nil {
		return "", err
	}

	if len(names) == 0 {
		return "", errors.New("cli: register name required")
	}

	values := make([]regmap.Value, 0, len(names))
	for _, name := range names {
		v, err := e.Device.Read(name)
		if err != nil {
			return "", err
		}
		values = append(values, v)
	}

	return s.formatValues(values)
}

// Dump reads every register of the selected link. With refresh the cache
// is dropped first.
func (s *Session) Dump(refresh bool) (string, error) {
	e, err := s.current()
	if err != nil {
		return "", err
	}

	var values []regmap.Value
	if refresh {
		values, err = e.Device.Refresh()
	} else {
		values, err = e.Device.ReadAll()
	}
	if err != nil {
		return "", err
	}

	return s.formatValues(values)
}

// Set writes value to the named register of the selected link.
func (s *Session) Set(name, value string) (string, error) {
	e, err := s.current()
	if err != nil {
		return "", err
	}

	if err := e.Device.WriteString(name, value); err != nil {
		return "", err
	}

	return "OK", nil
}

// Peek reads the register at a raw address.
func (s *Session) Peek(width, addr string) (string, error) {
	e, err := s.current()
	if err != nil {
		return "", err
	}

	w, a, err := parseRaw(width, addr)
	if err != nil {
		return "", err
	}

	v, err := e.Device.ReadAt(a, w)
	if err != nil {
		return "", err
	}

	return s.formatValues([]regmap.Value{v})
}

// Poke writes value to the register at a raw address.
func (s *Session) Poke(width, addr, value string) (string, error) {
	e, err := s.current()
	if err != nil {
		return "", err
	}

	w, a, err := parseRaw(width, addr)
	if err != nil {
		return "", err
	}

	if err := e.Device.WriteAt(a, w, value); err != nil {
		return "", err
	}

	return "OK", nil
}

// Stats reports the link counters of the selected link.
func (s *Session) Stats() (string, error) {
	e, err := s.current()
	if err != nil {
		return "", err
	}

	snap := e.Link().GetMetrics().Snapshot()
	if s.OutputJSON {
		return marshalJSON(snap)
	}

	out, err := yaml.Marshal(snap)
	if err != nil {
		return "", err
	}

	return strings.TrimRight(string(out), "\n"), nil
}

func (s *Session) formatValues(values []regmap.Value) (string, error) {
	if s.OutputJSON {
		views := make([]regmap.View, len(values))
		for i, v := range values {
			views[i] = v.View()
		}

		return marshalJSON(views)
	}

	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = v.String()
	}

	return strings.Join(lines, "\n"), nil
}

func parseRaw(width, addr string) (regmap.Width, uint16, error) {
	w, err := regmap.ParseWidth(width)
	if err != nil {
		return 0, 0, err
	}

	a, err := strconv.ParseUint(addr, 0, 16)
	if err != nil || a > remregs.MaxAddress {
		return 0, 0, fmt.Errorf("%w: %q", remregs.ErrInvalidAddress, addr)
	}

	return w, uint16(a), nil
}

func marshalJSON(v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

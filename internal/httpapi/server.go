// Package httpapi exposes the links of a linkmgr.Manager over HTTP.
//
//	GET  /version
//	GET  /links
//	GET  /links/{link}
//	GET  /links/{link}/stats
//	POST /links/{link}/sync
//	GET  /links/{link}/registers[?refresh=1]
//	GET  /links/{link}/registers/{name}
//	PUT  /links/{link}/registers/{name}    {"value": "0x10"} or {"value": 16}
//
// The /registers routes without a link prefix address the first link.
package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/arloliu/go-remregs/internal/linkmgr"
	"github.com/arloliu/go-remregs/logger"
	"github.com/arloliu/go-remregs/regmap"
	"github.com/arloliu/go-remregs/remregs"
)

// BuildInfo is reported by GET /version.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
}

// Server serves the HTTP API.
type Server struct {
	mgr    *linkmgr.Manager
	build  BuildInfo
	logger logger.Logger
	router *mux.Router
}

var _ http.Handler = (*Server)(nil)

// New creates the API server of mgr.
func New(mgr *linkmgr.Manager, build BuildInfo, l logger.Logger) *Server {
	if l == nil {
		l = logger.GetLogger()
	}

	s := &Server{
		mgr:    mgr,
		build:  build,
		logger: l,
		router: mux.NewRouter(),
	}

	r := s.router
	r.HandleFunc("/version", s.versionInfo).Methods(http.MethodGet)
	r.HandleFunc("/links", s.listLinks).Methods(http.MethodGet)
	r.HandleFunc("/links/{link}", s.getLink).Methods(http.MethodGet)

	link := r.PathPrefix("/links/{link}").Subrouter()
	link.HandleFunc("/stats", s.getStats).Methods(http.MethodGet)
	link.HandleFunc("/sync", s.syncLink).Methods(http.MethodPost)
	s.registerRoutes(link)

	s.registerRoutes(r)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("no such route"))
	})

	return s
}

func (s *Server) registerRoutes(r *mux.Router) {
	r.HandleFunc("/registers", s.listRegisters).Methods(http.MethodGet)
	r.HandleFunc("/registers/{name}", s.getRegister).Methods(http.MethodGet)
	r.HandleFunc("/registers/{name}", s.setRegister).Methods(http.MethodPut)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)

	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	_ = e.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusOf maps an operation error to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, linkmgr.ErrUnknownLink), errors.Is(err, regmap.ErrUnknownRegister):
		return http.StatusNotFound
	case errors.Is(err, regmap.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, regmap.ErrInvalidValue),
		errors.Is(err, regmap.ErrValueOutOfRange),
		errors.Is(err, regmap.ErrWidthUnsupported),
		errors.Is(err, remregs.ErrPayloadTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, remregs.ErrOperationRejected):
		return http.StatusBadGateway
	case errors.Is(err, remregs.ErrLinkTimeout), errors.Is(err, remregs.ErrHandshakeTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("httpapi: request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	writeError(w, status, err)
}

// entry resolves the {link} route variable, the first link when absent.
func (s *Server) entry(r *http.Request) (*linkmgr.Entry, error) {
	name, ok := mux.Vars(r)["link"]
	if !ok {
		return s.mgr.Default()
	}

	return s.mgr.Get(name)
}

func (s *Server) versionInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.build)
}

// LinkInfo describes one link.
type LinkInfo struct {
	Name      string            `json:"name"`
	Endpoint  string            `json:"endpoint"`
	State     string            `json:"state"`
	Registers []regmap.Register `json:"registers"`
}

func linkInfo(e *linkmgr.Entry) LinkInfo {
	return LinkInfo{
		Name:      e.Name,
		Endpoint:  e.Config.Endpoint,
		State:     e.Link().State().String(),
		Registers: e.Device.Map().Registers(),
	}
}

func (s *Server) listLinks(w http.ResponseWriter, r *http.Request) {
	infos := make([]LinkInfo, 0, s.mgr.Len())

	for _, name := range s.mgr.Names() {
		e, err := s.mgr.Get(name)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		infos = append(infos, linkInfo(e))
	}

	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) getLink(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, linkInfo(e))
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, e.Link().GetMetrics().Snapshot())
}

func (s *Server) syncLink(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := e.Device.Sync(); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"state": e.Link().State().String()})
}

func (s *Server) listRegisters(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var values []regmap.Value
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		values, err = e.Device.Refresh()
	} else {
		values, err = e.Device.ReadAll()
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	views := make([]regmap.View, len(values))
	for i, v := range values {
		views[i] = v.View()
	}

	writeJSON(w, http.StatusOK, views)
}

func (s *Server) getRegister(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	v, err := e.Device.Read(mux.Vars(r)["name"])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, v.View())
}

// SetRequest is the body of PUT /registers/{name}. Value is a JSON number
// or a string in Go integer syntax; multibyte registers take a hex string.
type SetRequest struct {
	Value string `json:"value"`
}

// UnmarshalJSON accepts both numbers and strings for Value.
func (req *SetRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value any `json:"value"`
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.Value.(type) {
	case json.Number:
		req.Value = v.String()
	case string:
		req.Value = v
	case nil:
		return fmt.Errorf("%w: value is required", regmap.ErrInvalidValue)
	default:
		return fmt.Errorf("%w: value must be a number or a string", regmap.ErrInvalidValue)
	}

	return nil
}

func (s *Server) setRegister(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	name := mux.Vars(r)["name"]
	if err := e.Device.WriteString(name, req.Value); err != nil {
		s.fail(w, r, err)
		return
	}

	v, err := e.Device.Read(name)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, v.View())
}

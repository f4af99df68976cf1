// Package helper exposes entity saves and indexed documents over http.
package helper

import (
	"errors"
	"net/http"
	"strings"

	"github.com/manishrjain/denorm/api"
	"github.com/manishrjain/denorm/indexer"
	"github.com/manishrjain/denorm/req"
	"github.com/manishrjain/denorm/search"
	"github.com/manishrjain/denorm/x"
)

var log = x.Log("helper")

type Entity struct {
	Id     string                 `json:"id,omitempty"`
	Kind   string                 `json:"kind,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
	Unset  []string               `json:"unset,omitempty"`
	Source string                 `json:"source,omitempty"`
}

type Helper struct {
	ctx    *req.Context
	engine search.Engine
}

func (h *Helper) SetContext(c *req.Context) {
	h.ctx = c
}

func (h *Helper) SetEngine(e search.Engine) {
	h.engine = e
}

// CreateOrUpdate saves the posted entity. An entity without id is created
// with a generated one. If the save went through but reindexing the
// documents embedding it failed, the reply is E_REINDEX; the saved
// state stands.
func (h *Helper) CreateOrUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		x.SetStatus(w, x.E_INVALID_METHOD, "Use POST or PUT")
		return
	}
	var e Entity
	if ok := x.ParseRequest(w, r, &e); !ok {
		return
	}
	if len(e.Kind) == 0 {
		x.SetStatus(w, x.E_INVALID_REQUEST, "No kind specified")
		return
	}
	if len(e.Source) == 0 {
		x.SetStatus(w, x.E_INVALID_REQUEST, "No source specified")
		return
	}

	n := api.Get(e.Kind, e.Id).SetSource(e.Source)
	for key, val := range e.Data {
		n.Set(key, val)
	}
	for _, key := range e.Unset {
		n.Unset(key)
	}
	err := n.Execute(r.Context(), h.ctx)
	var ferr *indexer.FanOutError
	var eerr *indexer.EnqueueError
	switch {
	case err == nil:
		x.Reply(w, map[string]string{"id": n.Id(), "kind": e.Kind})
	case errors.As(err, &ferr), errors.As(err, &eerr):
		x.LogErr(log, err).WithField("entity", x.Entity{Kind: e.Kind, Id: n.Id()}).
			Warn("Stored, but reindex failed")
		x.SetStatus(w, x.E_REINDEX, err.Error())
	default:
		x.SetStatus(w, x.E_ERROR, err.Error())
	}
}

// Read replies with the indexed document at /read/<kind>/<id>.
func (h *Helper) Read(w http.ResponseWriter, r *http.Request) {
	path, ok := x.ParseIdFromUrl(r, "/read/")
	if !ok {
		x.SetStatus(w, x.E_INVALID_REQUEST, "Invalid path")
		return
	}
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) == 0 {
		x.SetStatus(w, x.E_INVALID_REQUEST, "Expected /read/<kind>/<id>")
		return
	}
	doc, err := h.engine.Get(r.Context(), parts[0], parts[1])
	if err == search.ErrNotFound {
		x.SetStatus(w, x.E_NOT_FOUND, "No such document")
		return
	}
	if err != nil {
		x.SetStatus(w, x.E_ERROR, err.Error())
		return
	}
	x.Reply(w, doc)
}

package http

import (
	"github.com/beldeveloper/go-errors-context"
	"github.com/julienschmidt/httprouter"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/errtype"
	"net/http"
	"strconv"
)

// NewHandler creates a new instance of the REST API handler.
func NewHandler(triggerSvc app.TriggerSvc, accessKey app.ApiAccessKey) Handler {
	return Handler{
		triggerSvc: triggerSvc,
		accessKey:  string(accessKey),
	}
}

// Handler handles the REST API requests.
type Handler struct {
	triggerSvc app.TriggerSvc
	accessKey  string
}

// Build returns the build with its lineage.
func (h Handler) Build(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	err := h.validateKey(r)
	if err != nil {
		apiError(w, err)
		return
	}
	id, err := buildID(ps)
	if err != nil {
		apiError(w, err)
		return
	}
	res, err := h.triggerSvc.Build(r.Context(), id)
	if err != nil {
		apiError(w, err)
		return
	}
	apiSuccess(w, res)
}

// TriggerBuild fires the triggers of the finished build and returns it.
func (h Handler) TriggerBuild(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	err := h.validateKey(r)
	if err != nil {
		apiError(w, err)
		return
	}
	id, err := buildID(ps)
	if err != nil {
		apiError(w, err)
		return
	}
	err = h.triggerSvc.Run(r.Context(), id)
	if err != nil {
		apiError(w, err)
		return
	}
	res, err := h.triggerSvc.Build(r.Context(), id)
	if err != nil {
		apiError(w, err)
		return
	}
	apiSuccess(w, res)
}

func (h Handler) validateKey(r *http.Request) error {
	if r.URL.Query().Get("accessKey") != h.accessKey {
		return errors.WrapContext(errtype.ErrUnauthorized, errors.Context{Path: "http.Handler.validateKey"})
	}
	return nil
}

func buildID(ps httprouter.Params) (uint64, error) {
	id, err := strconv.ParseUint(ps.ByName("id"), 10, 64)
	if err != nil {
		return 0, errors.WrapContext(errtype.ErrBadInput, errors.Context{
			Path:   "http.buildID",
			Params: errors.Params{"id": ps.ByName("id")},
		})
	}
	return id, nil
}

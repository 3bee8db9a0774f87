package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/datasource"
	"github.com/conduit-lang/recordkit/internal/orm/crud"
	"github.com/conduit-lang/recordkit/internal/orm/query"
	"github.com/conduit-lang/recordkit/internal/web/middleware"
	"github.com/conduit-lang/recordkit/internal/web/response"
)

// Handler serves records of every entity in a repository
type Handler struct {
	repo   *crud.Repository
	logger *zap.Logger
}

// NewRouter returns the entity routes:
//
//	GET    /entities
//	GET    /entities/{entity}?alias=value
//	GET    /entities/{entity}/{id}
//	PUT    /entities/{entity}/{id}
//	POST   /entities/{entity}/{id}
//	DELETE /entities/{entity}/{id}
//
// PUT and POST take form values named alias or table.alias; an id of "new"
// creates a record for entities created on save.
func NewRouter(repo *crud.Repository, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{repo: repo, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID(), middleware.Logging(logger), middleware.Recovery(logger))

	r.Get("/entities", h.listEntities)
	r.Route("/entities/{entity}", func(r chi.Router) {
		r.Get("/", h.search)
		r.Get("/{id}", h.show)
		r.Put("/{id}", h.save)
		r.Post("/{id}", h.save)
		r.Delete("/{id}", h.remove)
	})
	return r
}

func (h *Handler) listEntities(w http.ResponseWriter, r *http.Request) {
	response.RenderJSON(w, http.StatusOK, map[string]interface{}{
		"entities": h.repo.Entities(),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entity := chi.URLParam(r, "entity")
	id := chi.URLParam(r, "id")

	rec, err := h.repo.New(ctx, entity, crud.Scalar{Value: id})
	if err != nil {
		response.RenderRecordError(w, err)
		return
	}

	snap, err := rec.Snapshot(ctx)
	if err != nil {
		response.RenderRecordError(w, err)
		return
	}
	if rec.IsNew() {
		response.RenderError(w, http.StatusNotFound, crud.ErrNotFound)
		return
	}
	response.RenderJSON(w, http.StatusOK, snap)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entity := chi.URLParam(r, "entity")

	search, err := h.repo.Search(ctx, entity, nil)
	if err != nil {
		response.RenderRecordError(w, err)
		return
	}

	results, err := search.Query(ctx, criteriaFrom(r.URL.Query()))
	if err != nil {
		response.RenderRecordError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(results))
	for _, rec := range results {
		snap, err := rec.Snapshot(ctx)
		if err != nil {
			response.RenderRecordError(w, err)
			return
		}
		out = append(out, snap)
	}
	response.RenderJSON(w, http.StatusOK, out)
}

// save loads the record, imports the submitted form into it and saves it
func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entity := chi.URLParam(r, "entity")
	id := chi.URLParam(r, "id")

	if err := r.ParseForm(); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.repo.New(ctx, entity, crud.Scalar{Value: id})
	if err != nil {
		response.RenderRecordError(w, err)
		return
	}
	if err := rec.Load(ctx); err != nil {
		response.RenderRecordError(w, err)
		return
	}

	sch := rec.Bridge().Schema()
	pk := sch.PrimaryKey().Alias
	form := identifiedForm(r.PostForm, sch.Table(), pk, id)

	if err := rec.Import(ctx, datasource.NewRequestStore(form)); err != nil {
		response.RenderRecordError(w, err)
		return
	}

	created := rec.IsNew()
	if err := rec.Save(ctx); err != nil {
		response.RenderRecordError(w, err)
		return
	}

	snap, err := rec.Snapshot(ctx)
	if err != nil {
		response.RenderRecordError(w, err)
		return
	}

	status := http.StatusOK
	if created && !rec.IsNew() {
		status = http.StatusCreated
	}
	h.logger.Debug("record saved",
		zap.String("entity", entity),
		zap.Any("id", snap[pk]),
		zap.Bool("created", status == http.StatusCreated))
	response.RenderJSON(w, status, snap)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entity := chi.URLParam(r, "entity")
	id := chi.URLParam(r, "id")

	rec, err := h.repo.New(ctx, entity, crud.Scalar{Value: id})
	if err != nil {
		response.RenderRecordError(w, err)
		return
	}

	if err := rec.Remove(ctx); err != nil {
		if crud.IsNoRowsAffected(err) {
			response.RenderError(w, http.StatusNotFound, err)
			return
		}
		response.RenderRecordError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// identifiedForm copies form and adds the record id under the key style the
// form uses, table.alias or bare alias, unless the form names the id itself
func identifiedForm(form url.Values, table, pk, id string) url.Values {
	out := url.Values{}
	prefixed := false
	for k, v := range form {
		out[k] = v
		if strings.HasPrefix(k, table+".") {
			prefixed = true
		}
	}

	key := pk
	if prefixed {
		key = table + "." + pk
	}
	if _, ok := out[key]; !ok {
		out.Set(key, id)
	}
	return out
}

// criteriaFrom turns query parameters into criteria. A repeated parameter
// becomes an IN list.
func criteriaFrom(values url.Values) query.Criteria {
	criteria := make(query.Criteria, len(values))
	for alias, vals := range values {
		if len(vals) == 1 {
			criteria[alias] = vals[0]
			continue
		}
		list := make([]interface{}, len(vals))
		for i, v := range vals {
			list[i] = v
		}
		criteria[alias] = list
	}
	return criteria
}

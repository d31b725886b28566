package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/seed-web/internal/assets"
	"finitefield.org/seed-web/internal/config"
	"finitefield.org/seed-web/internal/hierarchy"
	"finitefield.org/seed-web/internal/i18n"
	"finitefield.org/seed-web/internal/layout"
	mw "finitefield.org/seed-web/internal/middleware"
	"finitefield.org/seed-web/internal/navigator"
	"finitefield.org/seed-web/internal/observability"
	"finitefield.org/seed-web/internal/reconcile"
	"finitefield.org/seed-web/internal/render"
	"finitefield.org/seed-web/internal/requestctx"
	"finitefield.org/seed-web/internal/seo"
	"finitefield.org/seed-web/internal/straindata"
)

const (
	routeTree        = "/strains/tree"
	routeTreeJSON    = "/strains/tree.json"
	routeExpandAll   = "/strains/tree/expand-all"
	routeCollapseAll = "/strains/tree/collapse-all"
)

func toggleURL(id int) string {
	return fmt.Sprintf("/strains/tree/nodes/%d/toggle", id)
}

// server holds the dependencies of the HTTP handlers.
type server struct {
	logger    *zap.Logger
	registry  *navigator.Registry
	loader    *straindata.Loader
	pages     *render.Pages
	bundle    *i18n.Bundle
	site      config.Site
	sessions  *mw.Sessions
	metrics   *observability.Metrics
	options   navigator.Options
	projectID string
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.InjectLoggerMiddleware(s.logger.Named("http")))
	r.Use(observability.TraceMiddleware(s.projectID))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Handle("/assets/*", mw.AssetsWithCache(assets.FS(), "/assets"))

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware)
		r.Use(observability.RequestLoggerMiddleware())
		r.Use(chimw.Compress(5))
		r.Use(mw.HTMX)
		r.Use(mw.Locale(s.bundle))
		r.Use(mw.CSRF(s.sessions.Secure()))

		r.Get("/", s.handlePage)
		if s.site.StrainTree.Enabled {
			r.Get(routeTree, s.handleTree)
			r.Get(routeTreeJSON, s.handleTreeJSON)
			r.Post("/strains/tree/nodes/{id}/toggle", s.handleToggle)
			r.Post(routeExpandAll, s.handleExpandAll)
			r.Post(routeCollapseAll, s.handleCollapseAll)
		}
	})
	return r
}

func (s *server) handlePage(w http.ResponseWriter, r *http.Request) {
	lang := mw.Lang(r)
	title := s.site.StrainTree.Title
	if title == "" {
		title = s.bundle.T(lang, "strains.title")
	}
	data := render.PageData{
		Lang:   lang,
		Site:   render.Site{Title: s.site.Name},
		Meta:   seo.NewMeta(s.site.Name, s.site.Tagline, canonical(s.site.URL, r)),
		JSONLD: s.structuredData(r, title),
		Section: render.Section{
			Enabled:     s.site.StrainTree.Enabled,
			Title:       title,
			Description: s.site.StrainTree.Description,
		},
		Options: s.options,
		Routes: render.Routes{
			Tree:        routeTree,
			ExpandAll:   routeExpandAll,
			CollapseAll: routeCollapseAll,
		},
		Height:    layout.DefaultHeight,
		CSRFToken: mw.CSRFToken(r),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages.Page(w, data); err != nil {
		requestctx.Logger(r.Context()).Error("page: render failed", zap.Error(err))
	}
}

func canonical(base string, r *http.Request) string {
	if base == "" {
		return ""
	}
	return base + r.URL.Path
}

// structuredData returns the organization block and, when the tree section is
// on and its data loads, a catalog of the described strains.
func (s *server) structuredData(r *http.Request, title string) []template.JS {
	blocks := []template.JS{template.JS(seo.JSON(seo.Organization(s.site.Name, s.site.URL)))}
	if !s.site.StrainTree.Enabled || s.loader == nil {
		return blocks
	}
	ds, err := s.loader.Load(r.Context(), s.options.DataURL)
	if err != nil {
		requestctx.Logger(r.Context()).Debug("page: catalog skipped", zap.Error(err))
		return blocks
	}
	if catalog := seo.Catalog(title, seo.CatalogItems(ds)); catalog != nil {
		blocks = append(blocks, template.JS(seo.JSON(catalog)))
	}
	return blocks
}

// viewport reads ?w= and ?h=. Missing or unparsable values fall back to the
// navigator defaults.
func viewport(r *http.Request) layout.Viewport {
	vp := layout.Viewport{Width: navigator.DefaultWidth}
	if w, err := strconv.Atoi(r.URL.Query().Get("w")); err == nil {
		vp.Width = w
	}
	if h, err := strconv.Atoi(r.URL.Query().Get("h")); err == nil {
		vp.Height = h
	}
	return vp.Normalize()
}

// handleTree (re)initialises the viewer's navigator for the requested
// viewport. A repeated request with an unchanged viewport reloads the data
// so a page refresh starts from the default disclosure state.
func (s *server) handleTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vp := viewport(r)
	nav, created := s.registry.Acquire(ctx, requestctx.Viewer(ctx), vp)
	var (
		frame reconcile.Frame
		err   error
	)
	switch {
	case created:
		frame, err = nav.Current(ctx)
	case nav.Viewport() == vp:
		frame, err = nav.Reload(ctx)
	default:
		frame, err = nav.Resize(ctx, vp)
	}
	s.respond(w, r, frame, err)
}

func (s *server) handleTreeJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nav, _ := s.registry.Acquire(ctx, requestctx.Viewer(ctx), viewport(r))
	frame, err := nav.Current(ctx)
	if failed(frame, err) {
		s.transportError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(frame); err != nil {
		requestctx.Logger(ctx).Warn("tree json: encode failed", zap.Error(err))
	}
}

func (s *server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		mw.WriteError(w, r, http.StatusNotFound, "unknown node")
		return
	}
	s.operate(w, r, func(ctx context.Context, nav *navigator.Navigator) (reconcile.Frame, error) {
		return nav.Toggle(ctx, id)
	})
}

func (s *server) handleExpandAll(w http.ResponseWriter, r *http.Request) {
	s.operate(w, r, (*navigator.Navigator).ExpandAll)
}

func (s *server) handleCollapseAll(w http.ResponseWriter, r *http.Request) {
	s.operate(w, r, (*navigator.Navigator).CollapseAll)
}

func (s *server) operate(w http.ResponseWriter, r *http.Request, op func(context.Context, *navigator.Navigator) (reconcile.Frame, error)) {
	ctx := r.Context()
	nav, _ := s.registry.Acquire(ctx, requestctx.Viewer(ctx), layout.Viewport{Width: navigator.DefaultWidth})
	frame, err := op(ctx, nav)
	s.respond(w, r, frame, err)
}

// respond writes the tree fragment. Load and render failures are already in
// the frame as an inline message; only unknown nodes and cancelled requests
// produce an error status.
func (s *server) respond(w http.ResponseWriter, r *http.Request, frame reconcile.Frame, err error) {
	if failed(frame, err) {
		s.transportError(w, r, err)
		return
	}
	props := render.TreeProps{
		Frame:     frame,
		TargetID:  s.options.TreeElementID,
		ToggleURL: toggleURL,
	}
	templ.Handler(render.Fragment(props, s.options.StrainDescriptionID)).ServeHTTP(w, r)
}

func (s *server) transportError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, hierarchy.ErrUnknownNode):
		mw.WriteError(w, r, http.StatusNotFound, "unknown node")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		mw.WriteError(w, r, http.StatusServiceUnavailable, "request cancelled")
	default:
		requestctx.Logger(r.Context()).Error("navigator: unexpected error", zap.Error(err))
		mw.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// failed reports errors that are not already rendered into the frame.
func failed(frame reconcile.Frame, err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, hierarchy.ErrUnknownNode) || frame.Error == ""
}

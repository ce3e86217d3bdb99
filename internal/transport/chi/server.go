// Package chi exposes the HTTP API: annotation CRUD, search with the
// scoped-route redirect policy, the annotated-URL feed, sharing, stacks,
// recall, health, and metrics.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	chirouter "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/renoted/renoted/internal/domain"
	"github.com/renoted/renoted/internal/domain/search/query"
	"github.com/renoted/renoted/internal/metrics"
	annotationuc "github.com/renoted/renoted/internal/usecase/annotation"
	healthuc "github.com/renoted/renoted/internal/usecase/health"
	pageuc "github.com/renoted/renoted/internal/usecase/page"
	searchuc "github.com/renoted/renoted/internal/usecase/search"
	shareuc "github.com/renoted/renoted/internal/usecase/share"
	stackuc "github.com/renoted/renoted/internal/usecase/stack"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the API handlers.
type Server struct {
	annotations   *annotationuc.Service
	pages         *pageuc.Service
	search        *searchuc.Service
	shares        *shareuc.Service
	stacks        *stackuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	pageSize      int
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	annotations *annotationuc.Service,
	pages *pageuc.Service,
	search *searchuc.Service,
	shares *shareuc.Service,
	stacks *stackuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
	pageSize int,
) *Server {
	if pageSize <= 0 {
		pageSize = 20
	}
	s := &Server{
		annotations: annotations,
		pages:       pages,
		search:      search,
		shares:      shares,
		stacks:      stacks,
		health:      health,
		logger:      logger,
		pageSize:    pageSize,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, "validation_failed"),
		sentinelHandler(domain.ErrAnnotationNotFound, http.StatusNotFound, "annotation_not_found"),
		sentinelHandler(domain.ErrPageNotFound, http.StatusNotFound, "page_not_found"),
		sentinelHandler(domain.ErrSharingNotFound, http.StatusNotFound, "sharing_not_found"),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, "backend_unavailable"),
	}
	return s
}

// Routes mounts every endpoint on a fresh router.
func (s *Server) Routes() chirouter.Router {
	r := chirouter.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api", func(r chirouter.Router) {
		r.Use(UserAuthMiddleware())

		r.Get("/search", s.SearchGeneral)
		r.Get("/search/group/{group}", s.SearchGroup)
		r.Get("/search/user/{user}", s.SearchUser)

		r.Post("/annotations", s.CreateAnnotation)
		r.Get("/annotations/{id}", s.GetAnnotation)
		r.Put("/annotations/{id}", s.UpdateAnnotation)
		r.Delete("/annotations/{id}", s.DeleteAnnotation)
		r.Post("/annotations/{id}/share", s.ShareAnnotation)

		r.Get("/shared", s.SharedFeed)
		r.Delete("/shared/{id}", s.Unshare)

		r.Get("/urls", s.URLFeed)
		r.Get("/urls/{id}", s.GetURL)
		r.Put("/urls/{id}", s.UpdateURL)
		r.Delete("/urls/{id}", s.DeleteURL)

		r.Post("/recall", s.Recall)

		r.Get("/stacks", s.ListStacks)
		r.Post("/stacks/{stack}/pages/{uriID}", s.AssignStack)
		r.Delete("/stacks/{stack}/pages/{uriID}", s.UnassignStack)
		r.Post("/stacks/{stack}/archive", s.ArchiveStack)
		r.Post("/stacks/{stack}/dearchive", s.DearchiveStack)
		r.Post("/stacks/{stack}/rename", s.RenameStack)
	})

	return r
}

// SearchGeneral handles GET /api/search. A query carrying exactly one
// group: or user: clause is redirected to the scoped route with the clause
// stripped.
func (s *Server) SearchGeneral(w http.ResponseWriter, r *http.Request) {
	q := query.Parse(r.URL.Query().Get("q"))

	if redir, ok := query.CheckRedirect(q); ok {
		target := "/api/search/" + redir.Kind + "/" + url.PathEscape(redir.Value)
		if redir.Query != "" {
			target += "?q=" + url.QueryEscape(redir.Query)
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	s.runSearch(w, r, q)
}

// SearchGroup handles GET /api/search/group/{group}.
func (s *Server) SearchGroup(w http.ResponseWriter, r *http.Request) {
	q := query.Parse(r.URL.Query().Get("q"))
	q.Groups = append(q.Groups, chirouter.URLParam(r, "group"))
	s.runSearch(w, r, q)
}

// SearchUser handles GET /api/search/user/{user}.
func (s *Server) SearchUser(w http.ResponseWriter, r *http.Request) {
	q := query.Parse(r.URL.Query().Get("q"))
	q.Users = append(q.Users, chirouter.URLParam(r, "user"))
	s.runSearch(w, r, q)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, q query.Query) {
	pageNum := query.ParsePage(r.URL.Query().Get("page"))
	q = q.Paginate(pageNum, s.pageSize)

	resp, err := s.search.Search(r.Context(), UserFromContext(r.Context()), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out := SearchResponse{
		Total:      resp.Total,
		Buckets:    make([]BucketResponse, len(resp.Buckets)),
		TagFacets:  facetsToDTO(resp.TagFacets),
		UserFacets: facetsToDTO(resp.UserFacets),
	}
	for i := range resp.Buckets {
		out.Buckets[i] = bucketToDTO(&resp.Buckets[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateAnnotation handles POST /api/annotations.
func (s *Server) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req AnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(true); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	a, err := s.annotations.Create(r.Context(), UserFromContext(r.Context()), req.toInput())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/annotations/"+a.ID())
	writeJSON(w, http.StatusCreated, annotationToDTO(&a))
}

// GetAnnotation handles GET /api/annotations/{id}.
func (s *Server) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	a, err := s.annotations.Get(r.Context(), UserFromContext(r.Context()), chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, annotationToDTO(&a))
}

// UpdateAnnotation handles PUT /api/annotations/{id}.
func (s *Server) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req AnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(false); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	a, err := s.annotations.Update(r.Context(), UserFromContext(r.Context()), chirouter.URLParam(r, "id"), req.toInput())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, annotationToDTO(&a))
}

// DeleteAnnotation handles DELETE /api/annotations/{id}.
func (s *Server) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	if err := s.annotations.Delete(r.Context(), UserFromContext(r.Context()), chirouter.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ShareAnnotation handles POST /api/annotations/{id}/share.
func (s *Server) ShareAnnotation(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	sa, err := s.shares.Share(r.Context(), UserFromContext(r.Context()), chirouter.URLParam(r, "id"), shareuc.Input{
		RecipientUserID: req.UserID,
		RecipientName:   req.Name,
		RecipientEmail:  req.Email,
		Title:           req.Title,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sharedToDTO(&sa))
}

// SharedFeed handles GET /api/shared.
func (s *Server) SharedFeed(w http.ResponseWriter, r *http.Request) {
	pageNum := query.ParsePage(r.URL.Query().Get("page"))
	feed, err := s.shares.Feed(r.Context(), UserFromContext(r.Context()), s.pageSize, (pageNum-1)*s.pageSize)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]SharedAnnotationResponse, len(feed))
	for i := range feed {
		items[i] = sharedToDTO(&feed[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Unshare handles DELETE /api/shared/{id}.
func (s *Server) Unshare(w http.ResponseWriter, r *http.Request) {
	if err := s.shares.Unshare(r.Context(), UserFromContext(r.Context()), chirouter.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// URLFeed handles GET /api/urls. With a q parameter it behaves as a
// bucketed search; without one it lists the caller's pages with their
// annotations.
func (s *Server) URLFeed(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("q"); raw != "" {
		s.runSearch(w, r, query.Parse(raw))
		return
	}

	pageNum := query.ParsePage(r.URL.Query().Get("page"))
	feed, err := s.pages.FeedAnnotated(r.Context(), UserFromContext(r.Context()), s.pageSize, (pageNum-1)*s.pageSize)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]AnnotatedPageResponse, len(feed))
	for i, ap := range feed {
		items[i] = annotatedToDTO(ap)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetURL handles GET /api/urls/{id}.
func (s *Server) GetURL(w http.ResponseWriter, r *http.Request) {
	ap, err := s.pages.GetAnnotated(r.Context(), UserFromContext(r.Context()), chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, annotatedToDTO(ap))
}

// UpdateURL handles PUT /api/urls/{id}.
func (s *Server) UpdateURL(w http.ResponseWriter, r *http.Request) {
	var req PageUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	pg, err := s.pages.Update(r.Context(), UserFromContext(r.Context()), chirouter.URLParam(r, "id"), pageuc.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToDTO(&pg))
}

// DeleteURL handles DELETE /api/urls/{id}.
func (s *Server) DeleteURL(w http.ResponseWriter, r *http.Request) {
	if err := s.pages.Delete(r.Context(), UserFromContext(r.Context()), chirouter.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recall handles POST /api/recall: the tags on the caller's annotations for
// the given document become a free-text query over the whole collection.
func (s *Server) Recall(w http.ResponseWriter, r *http.Request) {
	var req RecallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	resp, err := s.search.Recall(r.Context(), UserFromContext(r.Context()), req.URI, s.pageSize)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out := SearchResponse{
		Total:      resp.Total,
		Buckets:    make([]BucketResponse, len(resp.Buckets)),
		TagFacets:  facetsToDTO(resp.TagFacets),
		UserFacets: facetsToDTO(resp.UserFacets),
	}
	for i := range resp.Buckets {
		out.Buckets[i] = bucketToDTO(&resp.Buckets[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// ListStacks handles GET /api/stacks.
func (s *Server) ListStacks(w http.ResponseWriter, r *http.Request) {
	names, err := s.stacks.Active(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stacks": names})
}

// AssignStack handles POST /api/stacks/{stack}/pages/{uriID}.
func (s *Server) AssignStack(w http.ResponseWriter, r *http.Request) {
	err := s.stacks.Assign(r.Context(), UserFromContext(r.Context()),
		chirouter.URLParam(r, "uriID"), chirouter.URLParam(r, "stack"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnassignStack handles DELETE /api/stacks/{stack}/pages/{uriID}.
func (s *Server) UnassignStack(w http.ResponseWriter, r *http.Request) {
	err := s.stacks.Unassign(r.Context(), UserFromContext(r.Context()),
		chirouter.URLParam(r, "uriID"), chirouter.URLParam(r, "stack"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ArchiveStack handles POST /api/stacks/{stack}/archive.
func (s *Server) ArchiveStack(w http.ResponseWriter, r *http.Request) {
	if err := s.stacks.Archive(r.Context(), UserFromContext(r.Context()), chirouter.URLParam(r, "stack")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DearchiveStack handles POST /api/stacks/{stack}/dearchive.
func (s *Server) DearchiveStack(w http.ResponseWriter, r *http.Request) {
	if err := s.stacks.Dearchive(r.Context(), UserFromContext(r.Context()), chirouter.URLParam(r, "stack")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameStack handles POST /api/stacks/{stack}/rename.
func (s *Server) RenameStack(w http.ResponseWriter, r *http.Request) {
	var req StackRenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	err := s.stacks.Rename(r.Context(), UserFromContext(r.Context()),
		chirouter.URLParam(r, "stack"), req.Name)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrAnnotationNotFound,
		domain.ErrPageNotFound,
		domain.ErrSharingNotFound,
		domain.ErrNotFound,
		domain.ErrBackendUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "kba-plugin/internal/api/docs"
	"kba-plugin/internal/auth"
	"kba-plugin/internal/dal"
	"kba-plugin/internal/metrics"
)

const (
	defaultLimit = 25
	maxLimit     = 500
)

func (a *API) routes() {
	a.Routers.Use(middleware.Recoverer)

	// Public
	a.Routers.Get("/healthz", a.Health)
	a.Routers.Handle("/metrics", metrics.Handler())
	a.Routers.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	a.Routers.Post("/api/oauth/token", a.Token)

	// Secured
	a.Routers.Group(func(r chi.Router) {
		r.Use(a.Auth.RequireBearer)

		r.Get("/api/_info/entities", a.EntityInfo)
		r.Get("/api/{entity}", a.SearchEntities)
		r.Post("/api/{entity}", a.CreateEntity)
		r.Get("/api/{entity}/{id}", a.GetEntity)
		r.Patch("/api/{entity}/{id}", a.UpdateEntity)
		r.Delete("/api/{entity}/{id}", a.DeleteEntity)
	})
}

func (a *API) Router() http.Handler {
	return a.Routers
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dal.ErrUnknownEntity), errors.Is(err, dal.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dal.ErrInvalidPayload):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("[API] %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (a *API) repository(r *http.Request) (*dal.Repository, error) {
	def, err := a.Kernel.Definitions().GetByURLName(chi.URLParam(r, "entity"))
	if err != nil {
		return nil, err
	}
	return a.Kernel.Repository(def.EntityName())
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errors.Join(dal.ErrInvalidPayload, errors.New("invalid id"))
	}
	return id, nil
}

// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TokenRequest is the client-credentials grant.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// @Summary Issue an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body TokenRequest true "Client credentials"
// @Success 200 {object} auth.Token
// @Router /api/oauth/token [post]
func (a *API) Token(w http.ResponseWriter, r *http.Request) {
	var body TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if body.GrantType != "" && body.GrantType != "client_credentials" {
		http.Error(w, "unsupported grant_type", http.StatusBadRequest)
		return
	}
	token, err := a.Auth.Issue(body.ClientID, body.ClientSecret)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// @Summary List registered entities and their fields
// @Tags Info
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/_info/entities [get]
func (a *API) EntityInfo(w http.ResponseWriter, r *http.Request) {
	defs := a.Kernel.Definitions().Definitions()
	out := make([]entityInfo, 0, len(defs))
	for _, d := range defs {
		info := entityInfo{Entity: d.EntityName(), URL: "/api/" + d.URLName()}
		for _, f := range d.Fields().All() {
			info.Fields = append(info.Fields, fieldInfo{
				Property: f.PropertyName,
				Column:   f.StorageName,
				Type:     f.Kind,
				Flags:    f.Flags,
			})
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// SearchEntities returns one page of entities. count is the size of that
// page, not of the whole table.
//
// @Summary Search entities
// @Tags Entities
// @Security ApiKeyAuth
// @Produce json
// @Param entity path string true "Entity URL name, e.g. k-b-a-data"
// @Param limit query int false "Page size"
// @Param page query int false "1-based page"
// @Param sort query string false "Property, prefix with - for descending"
// @Success 200 {object} map[string]interface{}
// @Router /api/{entity} [get]
func (a *API) SearchEntities(w http.ResponseWriter, r *http.Request) {
	repo, err := a.repository(r)
	if err != nil {
		writeError(w, err)
		return
	}

	criteria := dal.NewCriteria()
	q := r.URL.Query()
	criteria.Limit = defaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			writeError(w, errors.Join(dal.ErrInvalidPayload, errors.New("invalid limit")))
			return
		}
		criteria.Limit = n
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, errors.Join(dal.ErrInvalidPayload, errors.New("invalid page")))
			return
		}
		criteria.Offset = (n - 1) * criteria.Limit
	}
	if v := q.Get("sort"); v != "" {
		dir := dal.Ascending
		if strings.HasPrefix(v, "-") {
			dir, v = dal.Descending, strings.TrimPrefix(v, "-")
		}
		criteria.AddSorting(v, dir)
	}

	result, err := repo.Search(r.Context(), criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": result.Len(),
		"data":  result.Elements(),
	})
}

// @Summary Get one entity
// @Tags Entities
// @Security ApiKeyAuth
// @Produce json
// @Param entity path string true "Entity URL name"
// @Param id path string true "Entity UUID"
// @Success 200 {object} map[string]interface{}
// @Router /api/{entity}/{id} [get]
func (a *API) GetEntity(w http.ResponseWriter, r *http.Request) {
	repo, err := a.repository(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := repo.Search(r.Context(), dal.NewCriteria(id))
	if err != nil {
		writeError(w, err)
		return
	}
	entity, ok := result.Get(id.String())
	if !ok {
		writeError(w, errors.Join(dal.ErrNotFound, errors.New(id.String())))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entity})
}

// @Summary Create an entity
// @Tags Entities
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param entity path string true "Entity URL name"
// @Success 201 {object} map[string]string
// @Router /api/{entity} [post]
func (a *API) CreateEntity(w http.ResponseWriter, r *http.Request) {
	repo, err := a.repository(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload dal.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	event, err := repo.Create(r.Context(), []dal.Payload{payload})
	if err != nil {
		writeError(w, err)
		return
	}

	id := event.IDs[0].String()
	log.Printf("[API] Created %s %s (client %s)", event.EntityName, id, auth.ClientID(r))
	w.Header().Set("Location", "/api/"+repo.Definition().URLName()+"/"+id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// @Summary Update an entity
// @Tags Entities
// @Security ApiKeyAuth
// @Accept json
// @Param entity path string true "Entity URL name"
// @Param id path string true "Entity UUID"
// @Success 204
// @Router /api/{entity}/{id} [patch]
func (a *API) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	repo, err := a.repository(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload dal.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if payload == nil {
		payload = dal.Payload{}
	}
	pk := repo.Definition().PrimaryKey().PropertyName
	if v, ok := payload[pk]; ok && v != id.String() {
		writeError(w, errors.Join(dal.ErrInvalidPayload, errors.New("id is immutable")))
		return
	}
	payload[pk] = id.String()

	if _, err := repo.Update(r.Context(), []dal.Payload{payload}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Delete an entity
// @Tags Entities
// @Security ApiKeyAuth
// @Param entity path string true "Entity URL name"
// @Param id path string true "Entity UUID"
// @Success 204
// @Router /api/{entity}/{id} [delete]
func (a *API) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	repo, err := a.repository(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := repo.Delete(r.Context(), []uuid.UUID{id}); err != nil {
		writeError(w, err)
		return
	}
	log.Printf("[API] Deleted %s %s", repo.Definition().EntityName(), id)
	w.WriteHeader(http.StatusNoContent)
}

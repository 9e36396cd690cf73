package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/amarflybot/curly-octo-memory/internal/platform/httpx"
	"github.com/amarflybot/curly-octo-memory/internal/shared"
)

// UserLookup resolves account IDs from the URL into usernames for the
// management API.
type UserLookup interface {
	LookupUsername(ctx context.Context, id string) (string, error)
}

// Handler exposes the permission and role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	users     UserLookup
	guard     Guard
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, users UserLookup, guard Guard) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		users:     users,
		guard:     guard,
		validator: validator.New(),
	}
}

// ownURL reports whether the caller addresses their own account.
func ownURL(r *http.Request, p *shared.Principal) bool {
	return p != nil && p.ID == chi.URLParam(r, "id")
}

// MountRoutes registers the management routes; mount under /users.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ActionRead, shared.ResourceUserRoles, WithOwnership(ownURL)))
		r.Get("/{id}/permissions", h.listPermissions)
		r.Post("/{id}/hasPermission", h.hasPermission)
		r.Get("/{id}/roles", h.listRoles)
		r.Get("/{id}/resources", h.listResources)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ActionCreate, shared.ResourceUserRoles, WithOwnership(ownURL)))
		r.Post("/{id}/permissions", h.grantPermission)
		r.Post("/{id}/roles", h.assignRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ActionDelete, shared.ResourceUserRoles))
		r.Delete("/{id}/permissions", h.revokePermission)
		r.Delete("/{id}/roles/{role}", h.unassignRole)
	})
}

// MountRoleRoutes registers the role administration routes; mount under
// /roles. Inclusion edges are pure policy, so no directory lookup applies.
func (h *Handler) MountRoleRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ActionRead, shared.ResourceRoles))
		r.Get("/", h.listAllRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ActionCreate, shared.ResourceRoles))
		r.Post("/inclusions", h.addInclusion)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ActionDelete, shared.ResourceRoles))
		r.Delete("/inclusions", h.removeInclusion)
	})
}

// permissionRequest mirrors the grant/check request body: an action verb, a
// resource token, and the domain the tuple is scoped to.
type permissionRequest struct {
	Operation string `json:"operation" validate:"required"`
	Resource  string `json:"resource" validate:"required"`
	Domain    string `json:"domain"`
}

func (h *Handler) username(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, err := h.users.LookupUsername(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return "", false
	}
	return username, true
}

func (h *Handler) decodePermission(w http.ResponseWriter, r *http.Request) (permissionRequest, bool) {
	var req permissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	if username == RootUser {
		httpx.JSON(w, http.StatusOK, RootSentinel)
		return
	}
	perms, err := h.service.UserPermissions(r.Context(), username, nil, nil)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) grantPermission(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	if username == RootUser {
		httpx.JSON(w, http.StatusOK, RootSentinel)
		return
	}
	req, ok := h.decodePermission(w, r)
	if !ok {
		return
	}
	added, err := h.service.GrantPermission(r.Context(), username, req.Domain, req.Operation, req.Resource)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"added": added})
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	if username == RootUser {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "superuser grants cannot be revoked")
		return
	}
	req, ok := h.decodePermission(w, r)
	if !ok {
		return
	}
	if err := h.service.RevokePermission(r.Context(), username, req.Domain, req.Operation, req.Resource); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) hasPermission(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	if username == RootUser {
		httpx.JSON(w, http.StatusOK, RootSentinel)
		return
	}
	req, ok := h.decodePermission(w, r)
	if !ok {
		return
	}
	perms, err := h.service.HasPermission(r.Context(), username, req.Domain, req.Operation, req.Resource)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	roles, err := h.service.AssignedRoles(r.Context(), username)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) listResources(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	perms, err := h.service.ResourcesForUser(r.Context(), username, query.Get("domain"), query.Get("action"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

type roleRequest struct {
	Role   string `json:"role" validate:"required"`
	Domain string `json:"domain"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	added, err := h.service.AssignRole(r.Context(), username, req.Role, req.Domain)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"added": added})
}

type inclusionRequest struct {
	Child  string `json:"child" validate:"required"`
	Parent string `json:"parent" validate:"required"`
	Domain string `json:"domain"`
}

func (h *Handler) decodeInclusion(w http.ResponseWriter, r *http.Request) (inclusionRequest, bool) {
	var req inclusionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) listAllRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.Roles(r.Context(), r.URL.Query().Get("domain"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) addInclusion(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeInclusion(w, r)
	if !ok {
		return
	}
	added, err := h.service.AddRoleInclusion(r.Context(), req.Child, req.Parent, req.Domain)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"added": added})
}

func (h *Handler) removeInclusion(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeInclusion(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveRoleInclusion(r.Context(), req.Child, req.Parent, req.Domain); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unassignRole(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	role := chi.URLParam(r, "role")
	domain := r.URL.Query().Get("domain")
	if err := h.service.UnassignRole(r.Context(), username, role, domain); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

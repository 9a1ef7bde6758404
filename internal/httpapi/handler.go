// Package httpapi exposes the decision and assignment surface to remote
// callers. It is a thin adapter: the caller supplies the request
// context, the core renders decisions and audit records.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/praetor-io/praetor/internal/assign"
	"github.com/praetor-io/praetor/internal/authz"
	"github.com/praetor-io/praetor/internal/grants"
	"github.com/praetor-io/praetor/internal/platform/httpx"
	"github.com/praetor-io/praetor/internal/shared"
)

// Decider renders permission decisions.
type Decider interface {
	Check(ctx context.Context, req authz.CheckRequest) (authz.CheckResult, error)
}

// Assigner mutates role assignments.
type Assigner interface {
	Assign(ctx context.Context, req assign.AssignRequest, actor shared.SecurityContext) error
	Revoke(ctx context.Context, req assign.RevokeRequest, actor shared.SecurityContext) error
}

// GrantRevoker deactivates direct permission grants.
type GrantRevoker interface {
	Revoke(ctx context.Context, req grants.RevokeRequest, actor shared.SecurityContext) error
}

// Handler serves the authorization endpoints.
type Handler struct {
	decider  Decider
	assigner Assigner
	granter  GrantRevoker
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(decider Decider, assigner Assigner, granter GrantRevoker, logger *slog.Logger) *Handler {
	return &Handler{decider: decider, assigner: assigner, granter: granter, logger: logger}
}

type resourceDTO struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

type evaluationDTO struct {
	Time       *time.Time     `json:"time,omitempty"`
	Location   string         `json:"location,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type checkRequestDTO struct {
	TenantID   string        `json:"tenantId"`
	UserID     string        `json:"userId"`
	Roles      []string      `json:"roles,omitempty"`
	Permission string        `json:"permission"`
	Resource   *resourceDTO  `json:"resource,omitempty"`
	Evaluation evaluationDTO `json:"evaluation"`
}

type effectivePermissionDTO struct {
	Permission string       `json:"permission"`
	Source     string       `json:"source"`
	Scope      *resourceDTO `json:"scope,omitempty"`
}

type checkResponseDTO struct {
	Granted       bool                     `json:"granted"`
	Reason        string                   `json:"reason"`
	Code          string                   `json:"code,omitempty"`
	CorrelationID string                   `json:"correlationId"`
	Permissions   []effectivePermissionDTO `json:"effectivePermissions,omitempty"`
}

// Check handles POST /v1/permissions/check.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var body checkRequestDTO
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, shared.NewValidationError(shared.CodeValidation, "malformed JSON body"))
		return
	}

	req := authz.CheckRequest{
		TenantID:      body.TenantID,
		UserID:        body.UserID,
		Roles:         body.Roles,
		Permission:    body.Permission,
		CorrelationID: correlationID(r),
	}
	if body.Resource != nil {
		req.Resource = &authz.ResourceScope{Type: body.Resource.Type, ID: body.Resource.ID}
	}
	if body.Evaluation.Time != nil {
		req.Evaluation.Time = *body.Evaluation.Time
	}
	req.Evaluation.Location = body.Evaluation.Location
	req.Evaluation.Attributes = body.Evaluation.Attributes

	result, err := h.decider.Check(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	resp := checkResponseDTO{
		Granted:       result.Granted,
		Reason:        result.Reason,
		Code:          result.Code,
		CorrelationID: req.CorrelationID,
	}
	for _, p := range result.Matched {
		dto := effectivePermissionDTO{Permission: p.Permission, Source: string(p.Source)}
		if p.Scope != nil {
			dto.Scope = &resourceDTO{Type: p.Scope.Type, ID: p.Scope.ID}
		}
		resp.Permissions = append(resp.Permissions, dto)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type assignRequestDTO struct {
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`
	RoleID   string `json:"roleId"`
	Scope    string `json:"scope,omitempty"`
}

type mutationResponseDTO struct {
	Success       bool   `json:"success"`
	CorrelationID string `json:"correlationId"`
}

// Assign handles POST /v1/roles/assign.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var body assignRequestDTO
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, shared.NewValidationError(shared.CodeValidation, "malformed JSON body"))
		return
	}
	actor, ok := shared.SecurityContextFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.NewAuthorizationError(shared.CodeInsufficientPerms, "missing actor context"))
		return
	}
	req := assign.AssignRequest{
		TenantID:      body.TenantID,
		UserID:        body.UserID,
		RoleID:        body.RoleID,
		Scope:         body.Scope,
		CorrelationID: correlationID(r),
	}
	if err := h.assigner.Assign(r.Context(), req, actor); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mutationResponseDTO{Success: true, CorrelationID: req.CorrelationID})
}

// Revoke handles POST /v1/roles/revoke.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	var body assignRequestDTO
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, shared.NewValidationError(shared.CodeValidation, "malformed JSON body"))
		return
	}
	actor, ok := shared.SecurityContextFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.NewAuthorizationError(shared.CodeInsufficientPerms, "missing actor context"))
		return
	}
	req := assign.RevokeRequest{
		TenantID:      body.TenantID,
		UserID:        body.UserID,
		RoleID:        body.RoleID,
		Scope:         body.Scope,
		CorrelationID: correlationID(r),
	}
	if err := h.assigner.Revoke(r.Context(), req, actor); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mutationResponseDTO{Success: true, CorrelationID: req.CorrelationID})
}

type revokeGrantRequestDTO struct {
	TenantID string `json:"tenantId"`
	GrantID  string `json:"grantId"`
}

// RevokeGrant handles POST /v1/grants/revoke.
func (h *Handler) RevokeGrant(w http.ResponseWriter, r *http.Request) {
	var body revokeGrantRequestDTO
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, shared.NewValidationError(shared.CodeValidation, "malformed JSON body"))
		return
	}
	actor, ok := shared.SecurityContextFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.NewAuthorizationError(shared.CodeInsufficientPerms, "missing actor context"))
		return
	}
	req := grants.RevokeRequest{
		TenantID:      body.TenantID,
		GrantID:       body.GrantID,
		CorrelationID: correlationID(r),
	}
	if err := h.granter.Revoke(r.Context(), req, actor); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mutationResponseDTO{Success: true, CorrelationID: req.CorrelationID})
}

func correlationID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

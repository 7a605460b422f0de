package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prismbi/prism/internal/config"
	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
	"github.com/prismbi/prism/internal/service"
)

// SystemHandler manages Prism's own configuration surface: admin sessions,
// roles, admin accounts, and API keys.
type SystemHandler struct {
	store    *config.Store
	authSvc  *service.AuthService
	registry *connector.Registry
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(store *config.Store, authSvc *service.AuthService, registry *connector.Registry) *SystemHandler {
	return &SystemHandler{
		store:    store,
		authSvc:  authSvc,
		registry: registry,
	}
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response payload for a successful login.
type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	AdminID   int64  `json:"admin_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

// Login authenticates an admin user and returns a JWT session token.
// POST /api/v1/system/admin/session
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	admin, err := h.authSvc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "Authentication error: "+err.Error())
		return
	}

	ttl := 24 * time.Hour
	token, err := h.authSvc.IssueJWT(r.Context(), admin.ID, admin.Email, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token: "+err.Error())
		return
	}

	_ = h.store.UpdateAdminLastLogin(r.Context(), admin.ID)

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(ttl.Seconds()),
		AdminID:   admin.ID,
		Email:     admin.Email,
		Name:      admin.Name,
	})
}

// Logout acknowledges session teardown. JWT sessions are stateless, so
// there is nothing to revoke server-side; the client drops its token.
// DELETE /api/v1/system/admin/session
func (h *SystemHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated",
	})
}

// ---------------------------------------------------------------------------
// Environment
// ---------------------------------------------------------------------------

// ListDrivers returns the datasource types this build can connect to.
// GET /api/v1/system/driver
func (h *SystemHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers := h.registry.Drivers()
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: stringsToResources("name", drivers),
		Meta: &model.ResponseMeta{
			Count: len(drivers),
		},
	})
}

// ---------------------------------------------------------------------------
// Role management
// ---------------------------------------------------------------------------

// ListRoles returns all configured roles.
// GET /api/v1/system/role
func (h *SystemHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list roles: "+err.Error())
		return
	}

	resources := make([]map[string]interface{}, 0, len(roles))
	for i := range roles {
		resources = append(resources, roleToMap(&roles[i]))
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count: len(resources),
		},
	})
}

// roleComponents are the datasource surfaces an access rule can name.
var roleComponents = map[string]bool{
	"data": true, "query": true, "values": true, "metadata": true, "*": true,
}

// validateRoleAccess rejects rules that could never match a request: an
// unknown component, an empty or malformed datasource UID, or a verb mask
// outside the defined bits.
func validateRoleAccess(access []model.RoleAccess) error {
	for i, a := range access {
		if !roleComponents[a.Component] {
			return fmt.Errorf("access[%d]: unknown component %q", i, a.Component)
		}
		if a.DatasourceUID == "" {
			return fmt.Errorf("access[%d]: datasource_uid is required (use \"*\" for all)", i)
		}
		if a.DatasourceUID != "*" {
			if _, _, err := model.ParseUID(a.DatasourceUID); err != nil {
				return fmt.Errorf("access[%d]: %v", i, err)
			}
		}
		if a.VerbMask <= 0 || a.VerbMask > model.VerbAll {
			return fmt.Errorf("access[%d]: verb_mask %d out of range", i, a.VerbMask)
		}
	}
	return nil
}

// CreateRole creates a new role, including its access rules when provided.
// POST /api/v1/system/role
func (h *SystemHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var role model.Role
	if err := readJSON(r, &role); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if role.Name == "" {
		writeError(w, http.StatusBadRequest, "Role name is required")
		return
	}
	if err := validateRoleAccess(role.Access); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid access rule: "+err.Error())
		return
	}

	role.IsActive = true
	if role.Access == nil {
		role.Access = []model.RoleAccess{}
	}

	if err := h.store.CreateRole(r.Context(), &role); err != nil {
		status, msg := classifyDBError(err, "Failed to create role")
		writeError(w, status, msg)
		return
	}

	if len(role.Access) > 0 {
		if err := h.store.SetRoleAccess(r.Context(), role.ID, role.Access); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to set role access: "+err.Error())
			return
		}
	}

	writeJSON(w, http.StatusCreated, roleToMap(&role))
}

// GetRole returns a single role by ID.
// GET /api/v1/system/role/{roleId}
func (h *SystemHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "roleId")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role ID: "+idStr)
		return
	}

	role, err := h.store.GetRole(r.Context(), id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Role not found: "+idStr)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get role: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, roleToMap(role))
}

// UpdateRole modifies an existing role. Fields absent from the payload keep
// their stored value; access rules are replaced wholesale when present.
// PUT /api/v1/system/role/{roleId}
func (h *SystemHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "roleId")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role ID: "+idStr)
		return
	}

	existing, err := h.store.GetRole(r.Context(), id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Role not found: "+idStr)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get role: "+err.Error())
		return
	}

	var updates struct {
		model.Role
		IsActive *bool `json:"is_active"`
	}
	if err := readJSON(r, &updates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := validateRoleAccess(updates.Access); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid access rule: "+err.Error())
		return
	}

	if updates.Name != "" {
		existing.Name = updates.Name
	}
	if updates.Description != "" {
		existing.Description = updates.Description
	}
	if updates.IsActive != nil {
		existing.IsActive = *updates.IsActive
	}

	if err := h.store.UpdateRole(r.Context(), existing); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update role: "+err.Error())
		return
	}

	if updates.Access != nil {
		if err := h.store.SetRoleAccess(r.Context(), id, updates.Access); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to update role access: "+err.Error())
			return
		}
		existing.Access = updates.Access
	}

	writeJSON(w, http.StatusOK, roleToMap(existing))
}

// DeleteRole removes a role by ID.
// DELETE /api/v1/system/role/{roleId}
func (h *SystemHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "roleId")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role ID: "+idStr)
		return
	}

	if err := h.store.DeleteRole(r.Context(), id); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Role not found: "+idStr)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete role: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Role deleted",
	})
}

// ---------------------------------------------------------------------------
// Admin management
// ---------------------------------------------------------------------------

// ListAdmins returns all admin accounts.
// GET /api/v1/system/admin
func (h *SystemHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.store.ListAdmins(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list admins: "+err.Error())
		return
	}

	resources := make([]map[string]interface{}, 0, len(admins))
	for i := range admins {
		resources = append(resources, adminToMap(&admins[i]))
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count: len(resources),
		},
	})
}

// CreateAdmin creates a new admin account.
// POST /api/v1/system/admin
func (h *SystemHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if body.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if body.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}
	if len(body.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	if existing, err := h.store.GetAdminByEmail(r.Context(), body.Email); err == nil && existing != nil {
		writeError(w, http.StatusConflict, "Admin with this email already exists")
		return
	}

	admin := &model.Admin{
		Email:        body.Email,
		PasswordHash: config.HashAPIKey(body.Password),
		Name:         body.Name,
		IsActive:     true,
	}

	if err := h.store.CreateAdmin(r.Context(), admin); err != nil {
		status, msg := classifyDBError(err, "Failed to create admin")
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, adminToMap(admin))
}

// ---------------------------------------------------------------------------
// API Key management
// ---------------------------------------------------------------------------

// ListAPIKeys returns all configured API keys (without exposing the actual key).
// GET /api/v1/system/api-key
func (h *SystemHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list API keys: "+err.Error())
		return
	}

	// Role ID to name lookup so clients can display role names.
	roles, _ := h.store.ListRoles(r.Context())
	roleNames := make(map[int64]string, len(roles))
	for _, role := range roles {
		roleNames[role.ID] = role.Name
	}

	resources := make([]map[string]interface{}, 0, len(keys))
	for i := range keys {
		m := apiKeyToMap(&keys[i])
		m["role_name"] = roleNames[keys[i].RoleID]
		resources = append(resources, m)
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count: len(resources),
		},
	})
}

// createAPIKeyRequest is the expected payload for CreateAPIKey.
type createAPIKeyRequest struct {
	Label     string     `json:"label"`
	RoleID    int64      `json:"role_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// createAPIKeyResponse includes the plaintext key (shown once only).
type createAPIKeyResponse struct {
	ID        int64      `json:"id"`
	Key       string     `json:"api_key"` // Plaintext, shown ONCE.
	KeyPrefix string     `json:"key_prefix"`
	Label     string     `json:"label"`
	RoleID    int64      `json:"role_id"`
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateAPIKey generates a new API key, hashes it, stores the hash, and
// returns the plaintext key exactly once.
// POST /api/v1/system/api-key
func (h *SystemHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.RoleID == 0 {
		writeError(w, http.StatusBadRequest, "role_id is required")
		return
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		writeError(w, http.StatusBadRequest, "expires_at is in the past")
		return
	}

	if _, err := h.store.GetRole(r.Context(), req.RoleID); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Role not found: %d", req.RoleID))
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to validate role: "+err.Error())
		return
	}

	// 32 random bytes, hex-encoded.
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate key: "+err.Error())
		return
	}
	plaintext := "prism_" + hex.EncodeToString(rawBytes)

	keyHash := config.HashAPIKey(plaintext)
	keyPrefix := plaintext[:14] // "prism_" + first 8 hex chars

	apiKey := &model.APIKey{
		KeyHash:   keyHash,
		KeyPrefix: keyPrefix,
		Label:     req.Label,
		RoleID:    req.RoleID,
		IsActive:  true,
		ExpiresAt: req.ExpiresAt,
	}

	if err := h.store.CreateAPIKey(r.Context(), apiKey); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save API key: "+err.Error())
		return
	}

	// Return the plaintext key. This is the ONLY time it will be visible.
	writeJSON(w, http.StatusCreated, createAPIKeyResponse{
		ID:        apiKey.ID,
		Key:       plaintext,
		KeyPrefix: keyPrefix,
		Label:     apiKey.Label,
		RoleID:    apiKey.RoleID,
		IsActive:  apiKey.IsActive,
		ExpiresAt: apiKey.ExpiresAt,
		CreatedAt: apiKey.CreatedAt,
	})
}

// RevokeAPIKey deactivates an API key by ID.
// DELETE /api/v1/system/api-key/{keyId}
func (h *SystemHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "keyId")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid key ID: "+idStr)
		return
	}

	if err := h.store.RevokeAPIKey(r.Context(), id); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found: "+idStr)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke API key: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key revoked",
	})
}

// ---------------------------------------------------------------------------
// Serialization helpers. Password and key hashes never leave the store.
// ---------------------------------------------------------------------------

func roleToMap(role *model.Role) map[string]interface{} {
	return map[string]interface{}{
		"id":          role.ID,
		"name":        role.Name,
		"description": role.Description,
		"is_active":   role.IsActive,
		"access":      role.Access,
		"created_at":  role.CreatedAt,
		"updated_at":  role.UpdatedAt,
	}
}

func adminToMap(admin *model.Admin) map[string]interface{} {
	m := map[string]interface{}{
		"id":             admin.ID,
		"email":          admin.Email,
		"name":           admin.Name,
		"is_active":      admin.IsActive,
		"is_super_admin": admin.IsSuperAdmin,
		"created_at":     admin.CreatedAt,
		"updated_at":     admin.UpdatedAt,
	}
	if admin.LastLoginAt != nil {
		m["last_login_at"] = admin.LastLoginAt
	}
	return m
}

func apiKeyToMap(key *model.APIKey) map[string]interface{} {
	m := map[string]interface{}{
		"id":         key.ID,
		"key_prefix": key.KeyPrefix,
		"label":      key.Label,
		"role_id":    key.RoleID,
		"is_active":  key.IsActive,
		"created_at": key.CreatedAt,
	}
	if key.ExpiresAt != nil {
		m["expires_at"] = key.ExpiresAt
		m["expired"] = key.IsExpired(time.Now())
	}
	if key.LastUsed != nil {
		m["last_used"] = key.LastUsed
	}
	return m
}

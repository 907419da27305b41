package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"carbonregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var roleLogger = flogging.MustGetLogger("carbonregistry.roles")

// Object types for composite keys, also usable as 'docType' in CouchDB.
const (
	configObjectType    = "RegistryConfig" // Singleton init record. Attribute: "registry".
	roleGrantObjectType = "RoleGrant"      // Presence marks a grant. Attributes: identity, role.
)

// RoleManager is the registry's role authority. It answers "does identity X
// hold role R", resolves the caller's identity from the transaction context,
// and carries the super-admin gated grant/revoke surface.
type RoleManager struct {
	Ctx contractapi.TransactionContextInterface
}

// NewRoleManager creates a new instance of RoleManager.
func NewRoleManager(ctx contractapi.TransactionContextInterface) *RoleManager {
	return &RoleManager{Ctx: ctx}
}

// --- Key Creation Helpers (using Composite Keys) ---

func (rm *RoleManager) createConfigKey() (string, error) {
	return rm.Ctx.GetStub().CreateCompositeKey(configObjectType, []string{"registry"})
}

func (rm *RoleManager) createRoleGrantKey(identity string, role model.Role) (string, error) {
	return rm.Ctx.GetStub().CreateCompositeKey(roleGrantObjectType, []string{identity, string(role)})
}

// --- Registry Configuration ---

// ConfigExists reports whether InitRegistry has already run.
func (rm *RoleManager) ConfigExists() (bool, error) {
	key, err := rm.createConfigKey()
	if err != nil {
		return false, fmt.Errorf("failed to create registry config key: %w", err)
	}
	bytes, err := rm.Ctx.GetStub().GetState(key)
	if err != nil {
		return false, fmt.Errorf("failed to read registry config: %w", err)
	}
	return bytes != nil, nil
}

// LoadConfig returns the registry's init record. Every gated operation goes
// through here, so an uninitialized registry fails closed.
func (rm *RoleManager) LoadConfig() (*model.RegistryConfig, error) {
	key, err := rm.createConfigKey()
	if err != nil {
		return nil, fmt.Errorf("failed to create registry config key: %w", err)
	}
	bytes, err := rm.Ctx.GetStub().GetState(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry config: %w", err)
	}
	if bytes == nil {
		return nil, errors.New("registry is not initialized")
	}
	var cfg model.RegistryConfig
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registry config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes the registry's init record.
func (rm *RoleManager) SaveConfig(cfg *model.RegistryConfig) error {
	key, err := rm.createConfigKey()
	if err != nil {
		return fmt.Errorf("failed to create registry config key: %w", err)
	}
	bytes, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal registry config: %w", err)
	}
	if err := rm.Ctx.GetStub().PutState(key, bytes); err != nil {
		return fmt.Errorf("failed to save registry config: %w", err)
	}
	return nil
}

// --- Caller Identity ---

// CallerID retrieves the identity of the current transactor from the
// client-identity oracle.
func (rm *RoleManager) CallerID() (string, error) {
	clientIdentity := rm.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", errors.New("client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", errors.New("client identity ID from context is empty")
	}
	return id, nil
}

// --- Super-Admin Checks ---

// IsSuperAdmin reports whether the given identity is the registry's
// super-admin.
func (rm *RoleManager) IsSuperAdmin(identity string) (bool, error) {
	cfg, err := rm.LoadConfig()
	if err != nil {
		return false, err
	}
	return cfg.SuperAdmin == identity, nil
}

// RequireSuperAdmin fails with model.ErrUnauthorized unless the caller is
// the super-admin.
func (rm *RoleManager) RequireSuperAdmin() error {
	callerID, err := rm.CallerID()
	if err != nil {
		return fmt.Errorf("failed to get caller identity for super-admin check: %w", err)
	}
	isSuper, err := rm.IsSuperAdmin(callerID)
	if err != nil {
		return fmt.Errorf("failed to verify super-admin status for '%s': %w", callerID, err)
	}
	if !isSuper {
		return fmt.Errorf("%w: caller '%s' is not the super-admin", model.ErrUnauthorized, callerID)
	}
	return nil
}

// --- Role Membership ---

// HasRole reports whether the given identity holds the given role.
func (rm *RoleManager) HasRole(identity string, role model.Role) (bool, error) {
	key, err := rm.createRoleGrantKey(identity, role)
	if err != nil {
		return false, fmt.Errorf("failed to create role grant key for '%s': %w", identity, err)
	}
	bytes, err := rm.Ctx.GetStub().GetState(key)
	if err != nil {
		return false, fmt.Errorf("ledger error checking role '%s' for '%s': %w", role, identity, err)
	}
	return bytes != nil && string(bytes) == "true", nil
}

// RequireRole fails with model.ErrUnauthorized unless the caller holds the
// required role. The super-admin does not bypass role gates: roles are not
// hierarchical.
func (rm *RoleManager) RequireRole(required model.Role) error {
	callerID, err := rm.CallerID()
	if err != nil {
		return fmt.Errorf("failed to get caller identity for role check: %w", err)
	}
	has, err := rm.HasRole(callerID, required)
	if err != nil {
		return fmt.Errorf("error checking role '%s' for caller '%s': %w", required, callerID, err)
	}
	if !has {
		return fmt.Errorf("%w: identity '%s' does not hold required role '%s'", model.ErrUnauthorized, callerID, required)
	}
	roleLogger.Debugf("Role check passed for role '%s' for caller '%s'.", required, callerID)
	return nil
}

// ParseRole normalizes and validates a role token supplied by a caller.
func ParseRole(roleName string) (model.Role, error) {
	role := model.Role(strings.ToUpper(strings.TrimSpace(roleName)))
	if !model.ValidRoles[role] {
		return "", fmt.Errorf("invalid role: '%s'. Valid roles are: %v", roleName, model.RoleNames())
	}
	return role, nil
}

// --- Grant / Revoke (super-admin surface) ---

// GrantRole assigns a role to an identity. Super-admin only.
func (rm *RoleManager) GrantRole(targetIdentity string, role model.Role) error {
	if err := rm.RequireSuperAdmin(); err != nil {
		return err
	}
	return rm.grant(targetIdentity, role)
}

// grant writes the role-grant marker without an authorization gate. Used by
// GrantRole and by account registration, which runs under its own
// super-admin gate.
func (rm *RoleManager) grant(targetIdentity string, role model.Role) error {
	if !model.ValidRoles[role] {
		return fmt.Errorf("invalid role: '%s'. Valid roles are: %v", role, model.RoleNames())
	}
	key, err := rm.createRoleGrantKey(targetIdentity, role)
	if err != nil {
		return fmt.Errorf("failed to create role grant key for '%s': %w", targetIdentity, err)
	}
	existing, err := rm.Ctx.GetStub().GetState(key)
	if err != nil {
		return fmt.Errorf("ledger error checking existing grant for '%s': %w", targetIdentity, err)
	}
	if existing != nil {
		roleLogger.Infof("Role '%s' already granted to '%s'. No action needed.", role, targetIdentity)
		return nil
	}
	if err := rm.Ctx.GetStub().PutState(key, []byte("true")); err != nil {
		return fmt.Errorf("failed to save role grant '%s' for '%s': %w", role, targetIdentity, err)
	}
	roleLogger.Infof("Role '%s' granted to identity '%s'.", role, targetIdentity)
	return nil
}

// RevokeRole removes a role from an identity. Super-admin only. Revoking a
// role the identity does not hold is a no-op.
func (rm *RoleManager) RevokeRole(targetIdentity string, role model.Role) error {
	if err := rm.RequireSuperAdmin(); err != nil {
		return err
	}
	key, err := rm.createRoleGrantKey(targetIdentity, role)
	if err != nil {
		return fmt.Errorf("failed to create role grant key for '%s': %w", targetIdentity, err)
	}
	existing, err := rm.Ctx.GetStub().GetState(key)
	if err != nil {
		return fmt.Errorf("ledger error checking existing grant for '%s': %w", targetIdentity, err)
	}
	if existing == nil {
		roleLogger.Infof("Role '%s' not held by '%s'. No action taken for revocation.", role, targetIdentity)
		return nil
	}
	if err := rm.Ctx.GetStub().DelState(key); err != nil {
		return fmt.Errorf("failed to revoke role '%s' for '%s': %w", role, targetIdentity, err)
	}
	roleLogger.Infof("Role '%s' revoked from identity '%s'.", role, targetIdentity)
	return nil
}

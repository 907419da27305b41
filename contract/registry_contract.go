package contract

import (
	"fmt"

	"carbonregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("carbonregistry.contract")

// Object types for registry records. Also usable as 'docType' for CouchDB.
const (
	accountObjectType = "Account"      // Attribute: identity.
	creditObjectType  = "CarbonCredit" // Attributes: identity, creditId.
	tradeObjectType   = "CarbonTrade"  // Attributes: identity, tradeId.
)

// Constants for input validation and limits
const (
	maxIdentityLength         = 512
	maxOrganizationNameLength = 256
)

// CarbonRegistryContract tracks issuance and transfer of carbon-credit
// units among registered organizational accounts, under a role-based
// authorization model with an auditable per-account record trail.
// @contract:CarbonRegistryContract
type CarbonRegistryContract struct {
	contractapi.Contract
}

// Instantiate is called during chaincode instantiation.
func (s *CarbonRegistryContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("CarbonRegistryContract Instantiated/Upgraded")
}

// InitRegistry records the initial super-admin and the administrative
// transfer delay. It may run exactly once; every gated operation afterwards
// resolves authorization against this record.
func (s *CarbonRegistryContract) InitRegistry(ctx contractapi.TransactionContextInterface, superAdminID string, adminTransferDelaySeconds uint64) error {
	rm := NewRoleManager(ctx)

	exists, err := rm.ConfigExists()
	if err != nil {
		return fmt.Errorf("InitRegistry: failed to check for existing config: %w", err)
	}
	if exists {
		return fmt.Errorf("InitRegistry: registry is already initialized")
	}

	if err := s.validateIdentity(superAdminID, "superAdminID"); err != nil {
		return fmt.Errorf("InitRegistry: %w", err)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("InitRegistry: %w", err)
	}

	cfg := &model.RegistryConfig{
		ObjectType:                configObjectType,
		SuperAdmin:                superAdminID,
		AdminTransferDelaySeconds: adminTransferDelaySeconds,
		InitializedAt:             now,
	}
	if err := rm.SaveConfig(cfg); err != nil {
		return fmt.Errorf("InitRegistry: %w", err)
	}

	logger.Infof("Registry initialized. Super-admin: '%s', admin transfer delay: %ds", superAdminID, adminTransferDelaySeconds)
	return nil
}

// GetRegistryConfig returns the init record. Super-admin only.
func (s *CarbonRegistryContract) GetRegistryConfig(ctx contractapi.TransactionContextInterface) (*model.RegistryConfig, error) {
	rm := NewRoleManager(ctx)
	if err := rm.RequireSuperAdmin(); err != nil {
		return nil, fmt.Errorf("GetRegistryConfig: %w", err)
	}
	return rm.LoadConfig()
}

// --- Role Administration Wrappers (Delegating to RoleManager) ---

// GrantRole assigns one of the fixed roles to an identity. Super-admin only.
func (s *CarbonRegistryContract) GrantRole(ctx contractapi.TransactionContextInterface, targetIdentity, roleName string) error {
	logger.Infof("Chaincode Call: GrantRole '%s' to '%s'", roleName, targetIdentity)
	if err := s.validateIdentity(targetIdentity, "targetIdentity"); err != nil {
		return fmt.Errorf("GrantRole: %w", err)
	}
	role, err := ParseRole(roleName)
	if err != nil {
		return fmt.Errorf("GrantRole: %w", err)
	}
	if err := NewRoleManager(ctx).GrantRole(targetIdentity, role); err != nil {
		return err
	}
	s.emitRegistryEvent(ctx, "RoleGranted", map[string]interface{}{
		"identity": targetIdentity,
		"role":     string(role),
	})
	return nil
}

// RevokeRole removes one of the fixed roles from an identity. Super-admin
// only.
func (s *CarbonRegistryContract) RevokeRole(ctx contractapi.TransactionContextInterface, targetIdentity, roleName string) error {
	logger.Infof("Chaincode Call: RevokeRole '%s' from '%s'", roleName, targetIdentity)
	if err := s.validateIdentity(targetIdentity, "targetIdentity"); err != nil {
		return fmt.Errorf("RevokeRole: %w", err)
	}
	role, err := ParseRole(roleName)
	if err != nil {
		return fmt.Errorf("RevokeRole: %w", err)
	}
	if err := NewRoleManager(ctx).RevokeRole(targetIdentity, role); err != nil {
		return err
	}
	s.emitRegistryEvent(ctx, "RoleRevoked", map[string]interface{}{
		"identity": targetIdentity,
		"role":     string(role),
	})
	return nil
}

// HasRole reports whether an identity holds a role, by token. Public: the
// membership predicate itself carries no gate; the index-encoded CheckRole
// variant is the super-admin surface.
func (s *CarbonRegistryContract) HasRole(ctx contractapi.TransactionContextInterface, identity, roleName string) (bool, error) {
	if err := s.validateIdentity(identity, "identity"); err != nil {
		return false, fmt.Errorf("HasRole: %w", err)
	}
	role, err := ParseRole(roleName)
	if err != nil {
		return false, fmt.Errorf("HasRole: %w", err)
	}
	return NewRoleManager(ctx).HasRole(identity, role)
}

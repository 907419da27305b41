package contract

import (
	"encoding/json"
	"fmt"

	"carbonregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Super-Admin Operations ---

// RegisterAccount creates the account record for an organization and grants
// it the TRADER role. Super-admin only. Fails with AlreadyRegistered if the
// identity already has a valid account; registration is permanent, there is
// no deactivation.
func (s *CarbonRegistryContract) RegisterAccount(ctx contractapi.TransactionContextInterface, identity, organizationName string) error {
	rm := NewRoleManager(ctx)
	if err := rm.RequireSuperAdmin(); err != nil {
		return fmt.Errorf("RegisterAccount: %w", err)
	}

	if err := s.validateIdentity(identity, "identity"); err != nil {
		return fmt.Errorf("RegisterAccount: %w", err)
	}
	if err := s.validateRequiredString(organizationName, "organizationName", maxOrganizationNameLength); err != nil {
		return fmt.Errorf("RegisterAccount: %w", err)
	}

	key, err := s.createAccountKey(ctx, identity)
	if err != nil {
		return fmt.Errorf("RegisterAccount: failed to create account key for '%s': %w", identity, err)
	}
	existing, err := ctx.GetStub().GetState(key)
	if err != nil {
		return fmt.Errorf("RegisterAccount: failed to check for existing account '%s': %w", identity, err)
	}
	if existing != nil {
		var prior model.Account
		if err := json.Unmarshal(existing, &prior); err != nil {
			return fmt.Errorf("RegisterAccount: failed to unmarshal existing account '%s': %w", identity, err)
		}
		if prior.IsValid {
			return fmt.Errorf("%w: '%s'", model.ErrAlreadyRegistered, identity)
		}
	}

	callerID, err := rm.CallerID()
	if err != nil {
		return fmt.Errorf("RegisterAccount: %w", err)
	}
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("RegisterAccount: %w", err)
	}

	account := model.Account{
		ObjectType:       accountObjectType,
		Identity:         identity,
		OrganizationName: organizationName,
		TotalCredits:     0,
		CreditCount:      0,
		TradeCount:       0,
		IsValid:          true,
		RegisteredBy:     callerID,
		RegisteredAt:     now,
	}
	if err := s.putAccount(ctx, &account); err != nil {
		return fmt.Errorf("RegisterAccount: %w", err)
	}

	// Registration grants TRADER as a side effect; the caller already passed
	// the super-admin gate, so the ungated grant is used directly.
	if err := rm.grant(identity, model.RoleTrader); err != nil {
		return fmt.Errorf("RegisterAccount: failed to grant TRADER role to '%s': %w", identity, err)
	}

	// The peer keeps one event per transaction, so the side-effect grant is
	// folded into the registration event rather than emitted as RoleGranted.
	s.emitRegistryEvent(ctx, "AccountRegistered", map[string]interface{}{
		"identity":         identity,
		"organizationName": organizationName,
		"registeredBy":     callerID,
		"grantedRole":      string(model.RoleTrader),
	})
	logger.Infof("Account registered for '%s' (org: '%s') by super-admin", identity, organizationName)
	return nil
}

// AccountExists reports whether an identity has a valid registered account.
// Pure lookup; no authorization gate.
func (s *CarbonRegistryContract) AccountExists(ctx contractapi.TransactionContextInterface, identity string) (bool, error) {
	if err := s.validateIdentity(identity, "identity"); err != nil {
		return false, fmt.Errorf("AccountExists: %w", err)
	}
	key, err := s.createAccountKey(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("AccountExists: failed to create account key for '%s': %w", identity, err)
	}
	bytes, err := ctx.GetStub().GetState(key)
	if err != nil {
		return false, fmt.Errorf("AccountExists: ledger error retrieving account '%s': %w", identity, err)
	}
	if bytes == nil {
		return false, nil
	}
	var account model.Account
	if err := json.Unmarshal(bytes, &account); err != nil {
		return false, fmt.Errorf("AccountExists: failed to unmarshal account '%s': %w", identity, err)
	}
	return account.IsValid, nil
}

// CheckRole reports whether an identity holds the role encoded by the fixed
// numeric index (0=ADMIN, 1=TRADER, 2=AUDITOR, 3=ISSUER). Super-admin only.
func (s *CarbonRegistryContract) CheckRole(ctx contractapi.TransactionContextInterface, identity string, roleIndex uint64) (bool, error) {
	rm := NewRoleManager(ctx)
	if err := rm.RequireSuperAdmin(); err != nil {
		return false, fmt.Errorf("CheckRole: %w", err)
	}
	if err := s.validateIdentity(identity, "identity"); err != nil {
		return false, fmt.Errorf("CheckRole: %w", err)
	}
	role, ok := model.RoleByIndex(roleIndex)
	if !ok {
		return false, fmt.Errorf("CheckRole: role index %d is out of range", roleIndex)
	}
	return rm.HasRole(identity, role)
}

// GetAccount returns an account record. Restricted to the super-admin and
// the account owner.
func (s *CarbonRegistryContract) GetAccount(ctx contractapi.TransactionContextInterface, identity string) (*model.Account, error) {
	rm := NewRoleManager(ctx)
	if err := s.validateIdentity(identity, "identity"); err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	callerID, err := rm.CallerID()
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	if callerID != identity {
		isSuper, err := rm.IsSuperAdmin(callerID)
		if err != nil {
			return nil, fmt.Errorf("GetAccount: %w", err)
		}
		if !isSuper {
			return nil, fmt.Errorf("GetAccount: %w: only the super-admin or the account owner can read account details", model.ErrUnauthorized)
		}
	}
	return s.getAccount(ctx, identity)
}

// GetAllAccounts returns every registered account. Super-admin only.
func (s *CarbonRegistryContract) GetAllAccounts(ctx contractapi.TransactionContextInterface) ([]*model.Account, error) {
	rm := NewRoleManager(ctx)
	if err := rm.RequireSuperAdmin(); err != nil {
		return nil, fmt.Errorf("GetAllAccounts: %w", err)
	}

	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(accountObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("GetAllAccounts: failed to get accounts iterator: %w", err)
	}
	defer resultsIterator.Close()

	accounts := []*model.Account{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetAllAccounts: Failed to get next account from iterator: %v. Skipping.", iterErr)
			continue
		}
		var account model.Account
		if err := json.Unmarshal(queryResponse.Value, &account); err != nil {
			logger.Warningf("GetAllAccounts: Failed to unmarshal account data for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		accounts = append(accounts, &account)
	}
	logger.Debugf("GetAllAccounts: Returning %d accounts", len(accounts))
	return accounts, nil
}

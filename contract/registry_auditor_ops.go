package contract

import (
	"encoding/json"
	"fmt"

	"carbonregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Auditor Operations ---

// AuditCredit returns a read-only snapshot of one credit record from an
// account's issuance log. Caller must hold the AUDITOR role. Fails with
// RecordNotFound if no valid record exists at that id.
func (s *CarbonRegistryContract) AuditCredit(ctx contractapi.TransactionContextInterface, identity string, creditID uint64) (*model.CarbonCredit, error) {
	rm := NewRoleManager(ctx)
	if err := rm.RequireRole(model.RoleAuditor); err != nil {
		return nil, fmt.Errorf("AuditCredit: %w", err)
	}
	if err := s.validateIdentity(identity, "identity"); err != nil {
		return nil, fmt.Errorf("AuditCredit: %w", err)
	}
	credit, err := s.getCredit(ctx, identity, creditID)
	if err != nil {
		return nil, fmt.Errorf("AuditCredit: %w", err)
	}
	logger.Debugf("AuditCredit: credit %d of '%s' read by auditor", creditID, identity)
	return credit, nil
}

// GetCreditHistory returns every credit record issued to an account, in
// issuance order. Caller must hold the AUDITOR role.
func (s *CarbonRegistryContract) GetCreditHistory(ctx contractapi.TransactionContextInterface, identity string) ([]*model.CarbonCredit, error) {
	rm := NewRoleManager(ctx)
	if err := rm.RequireRole(model.RoleAuditor); err != nil {
		return nil, fmt.Errorf("GetCreditHistory: %w", err)
	}
	if err := s.validateIdentity(identity, "identity"); err != nil {
		return nil, fmt.Errorf("GetCreditHistory: %w", err)
	}
	if _, err := s.getAccount(ctx, identity); err != nil {
		return nil, fmt.Errorf("GetCreditHistory: %w", err)
	}

	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(creditObjectType, []string{identity})
	if err != nil {
		return nil, fmt.Errorf("GetCreditHistory: failed to get credits iterator for '%s': %w", identity, err)
	}
	defer resultsIterator.Close()

	credits := []*model.CarbonCredit{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetCreditHistory: Failed to get next credit from iterator: %v. Skipping.", iterErr)
			continue
		}
		var credit model.CarbonCredit
		if err := json.Unmarshal(queryResponse.Value, &credit); err != nil {
			logger.Warningf("GetCreditHistory: Failed to unmarshal credit data for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		credits = append(credits, &credit)
	}
	logger.Debugf("GetCreditHistory: Returning %d credit records for '%s'", len(credits), identity)
	return credits, nil
}

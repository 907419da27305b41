package contract

import (
	"fmt"
	"math"

	"carbonregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Issuer Operations ---

// IssueCredit mints new credit units into a registered account's log and
// balance. Caller must hold the ISSUER role. The credit id is the account's
// own monotonic issuance sequence, so a record, once written, is never
// overwritten by a later issuance. An amount of zero is permitted and
// produces a zero-value but valid record. Fails with BalanceOverflow if the
// balance cannot absorb the amount without wrapping.
func (s *CarbonRegistryContract) IssueCredit(ctx contractapi.TransactionContextInterface, targetIdentity string, amount uint64) error {
	rm := NewRoleManager(ctx)
	if err := rm.RequireRole(model.RoleIssuer); err != nil {
		return fmt.Errorf("IssueCredit: %w", err)
	}
	callerID, err := rm.CallerID()
	if err != nil {
		return fmt.Errorf("IssueCredit: %w", err)
	}

	if err := s.validateIdentity(targetIdentity, "targetIdentity"); err != nil {
		return fmt.Errorf("IssueCredit: %w", err)
	}

	account, err := s.getAccount(ctx, targetIdentity)
	if err != nil {
		return fmt.Errorf("IssueCredit: %w", err)
	}
	if amount > math.MaxUint64-account.TotalCredits {
		return fmt.Errorf("IssueCredit: %w: account '%s' holds %d, cannot add %d",
			model.ErrBalanceOverflow, targetIdentity, account.TotalCredits, amount)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("IssueCredit: %w", err)
	}

	credit := model.CarbonCredit{
		CreditID:   account.CreditCount,
		Amount:     amount,
		IssuedDate: now,
		IssuedBy:   callerID,
		IsValid:    true,
	}
	if err := s.putCredit(ctx, targetIdentity, &credit); err != nil {
		return fmt.Errorf("IssueCredit: %w", err)
	}

	account.CreditCount++
	account.TotalCredits += amount
	if err := s.putAccount(ctx, account); err != nil {
		return fmt.Errorf("IssueCredit: %w", err)
	}

	s.emitRegistryEvent(ctx, "CreditIssued", map[string]interface{}{
		"identity":     targetIdentity,
		"creditId":     credit.CreditID,
		"amount":       amount,
		"issuedBy":     callerID,
		"totalCredits": account.TotalCredits,
	})
	logger.Infof("Issued %d credit units to '%s' (creditId=%d, new balance=%d) by issuer '%s'",
		amount, targetIdentity, credit.CreditID, account.TotalCredits, callerID)
	return nil
}

package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"carbonregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Core Helper Methods (used across multiple operations) ---

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
func (s *CarbonRegistryContract) getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

// --- Key Creation Helpers ---

func (s *CarbonRegistryContract) createAccountKey(ctx contractapi.TransactionContextInterface, identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", errors.New("identity cannot be empty")
	}
	return ctx.GetStub().CreateCompositeKey(accountObjectType, []string{identity})
}

// Sequence ids are zero-padded to the full uint64 width so lexicographic
// key order matches numeric order over the whole id range.
func formatSequenceID(id uint64) string {
	return fmt.Sprintf("%020d", id)
}

func (s *CarbonRegistryContract) createCreditKey(ctx contractapi.TransactionContextInterface, identity string, creditID uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(creditObjectType, []string{identity, formatSequenceID(creditID)})
}

func (s *CarbonRegistryContract) createTradeKey(ctx contractapi.TransactionContextInterface, identity string, tradeID uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(tradeObjectType, []string{identity, formatSequenceID(tradeID)})
}

// --- Account State Helpers ---

// getAccount loads a registered account. Fails with model.ErrUnknownAccount
// when the identity has never been registered.
func (s *CarbonRegistryContract) getAccount(ctx contractapi.TransactionContextInterface, identity string) (*model.Account, error) {
	key, err := s.createAccountKey(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to create account key for '%s': %w", identity, err)
	}
	bytes, err := ctx.GetStub().GetState(key)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving account '%s': %w", identity, err)
	}
	if bytes == nil {
		return nil, fmt.Errorf("%w: '%s'", model.ErrUnknownAccount, identity)
	}
	var account model.Account
	if err := json.Unmarshal(bytes, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account '%s': %w", identity, err)
	}
	if !account.IsValid {
		return nil, fmt.Errorf("%w: '%s'", model.ErrUnknownAccount, identity)
	}
	return &account, nil
}

func (s *CarbonRegistryContract) putAccount(ctx contractapi.TransactionContextInterface, account *model.Account) error {
	key, err := s.createAccountKey(ctx, account.Identity)
	if err != nil {
		return fmt.Errorf("failed to create account key for '%s': %w", account.Identity, err)
	}
	bytes, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account '%s': %w", account.Identity, err)
	}
	if err := ctx.GetStub().PutState(key, bytes); err != nil {
		return fmt.Errorf("failed to save account '%s': %w", account.Identity, err)
	}
	return nil
}

// --- Credit / Trade Record Helpers ---

func (s *CarbonRegistryContract) putCredit(ctx contractapi.TransactionContextInterface, identity string, credit *model.CarbonCredit) error {
	key, err := s.createCreditKey(ctx, identity, credit.CreditID)
	if err != nil {
		return fmt.Errorf("failed to create credit key for '%s': %w", identity, err)
	}
	bytes, err := json.Marshal(credit)
	if err != nil {
		return fmt.Errorf("failed to marshal credit %d for '%s': %w", credit.CreditID, identity, err)
	}
	if err := ctx.GetStub().PutState(key, bytes); err != nil {
		return fmt.Errorf("failed to save credit %d for '%s': %w", credit.CreditID, identity, err)
	}
	return nil
}

// getCredit loads one credit record from an account's log. Fails with
// model.ErrRecordNotFound when the key is absent or the record is marked
// invalid.
func (s *CarbonRegistryContract) getCredit(ctx contractapi.TransactionContextInterface, identity string, creditID uint64) (*model.CarbonCredit, error) {
	key, err := s.createCreditKey(ctx, identity, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to create credit key for '%s': %w", identity, err)
	}
	bytes, err := ctx.GetStub().GetState(key)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving credit %d for '%s': %w", creditID, identity, err)
	}
	if bytes == nil {
		return nil, fmt.Errorf("%w: no credit record %d for '%s'", model.ErrRecordNotFound, creditID, identity)
	}
	var credit model.CarbonCredit
	if err := json.Unmarshal(bytes, &credit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credit %d for '%s': %w", creditID, identity, err)
	}
	if !credit.IsValid {
		return nil, fmt.Errorf("%w: credit record %d for '%s' is not valid", model.ErrRecordNotFound, creditID, identity)
	}
	return &credit, nil
}

func (s *CarbonRegistryContract) putTrade(ctx contractapi.TransactionContextInterface, identity string, trade *model.CarbonTrade) error {
	key, err := s.createTradeKey(ctx, identity, trade.TradeID)
	if err != nil {
		return fmt.Errorf("failed to create trade key for '%s': %w", identity, err)
	}
	bytes, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade %d for '%s': %w", trade.TradeID, identity, err)
	}
	if err := ctx.GetStub().PutState(key, bytes); err != nil {
		return fmt.Errorf("failed to save trade %d for '%s': %w", trade.TradeID, identity, err)
	}
	return nil
}

// getTrade loads one trade record from an account's log. Fails with
// model.ErrRecordNotFound when the key is absent or the record is marked
// invalid.
func (s *CarbonRegistryContract) getTrade(ctx contractapi.TransactionContextInterface, identity string, tradeID uint64) (*model.CarbonTrade, error) {
	key, err := s.createTradeKey(ctx, identity, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create trade key for '%s': %w", identity, err)
	}
	bytes, err := ctx.GetStub().GetState(key)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving trade %d for '%s': %w", tradeID, identity, err)
	}
	if bytes == nil {
		return nil, fmt.Errorf("%w: no trade record %d for '%s'", model.ErrRecordNotFound, tradeID, identity)
	}
	var trade model.CarbonTrade
	if err := json.Unmarshal(bytes, &trade); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trade %d for '%s': %w", tradeID, identity, err)
	}
	if !trade.IsValid {
		return nil, fmt.Errorf("%w: trade record %d for '%s' is not valid", model.ErrRecordNotFound, tradeID, identity)
	}
	return &trade, nil
}

// --- Validation Helper Functions ---

func (s *CarbonRegistryContract) validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if len(input) > max {
		return fmt.Errorf("%s exceeds max length %d", field, max)
	}
	return nil
}

func (s *CarbonRegistryContract) validateIdentity(identity, field string) error {
	return s.validateRequiredString(identity, field, maxIdentityLength)
}

// --- Event Helper ---

// emitRegistryEvent sends a chaincode event. Event failures are logged, not
// surfaced: the state mutation has already been validated and written.
func (s *CarbonRegistryContract) emitRegistryEvent(ctx contractapi.TransactionContextInterface, eventName string, payload map[string]interface{}) {
	eventBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Warningf("emitRegistryEvent: Failed to marshal payload for event '%s': %v", eventName, err)
		return
	}
	if err := ctx.GetStub().SetEvent(eventName, eventBytes); err != nil {
		logger.Warningf("emitRegistryEvent: Failed to set event '%s': %v", eventName, err)
	}
}

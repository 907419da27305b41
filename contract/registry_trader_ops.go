package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"carbonregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Trader Operations ---

// TransferCredits moves credit units from the caller (the seller) to the
// buyer's account. Caller must hold the TRADER role. The debit/credit pair
// is validated in full before anything is written, so a failed transfer
// leaves both balances untouched. One trade record is written into each
// party's log at that party's own trade sequence id; both sequence counters
// advance, counting participations.
func (s *CarbonRegistryContract) TransferCredits(ctx contractapi.TransactionContextInterface, buyerIdentity string, amount uint64) error {
	rm := NewRoleManager(ctx)
	if err := rm.RequireRole(model.RoleTrader); err != nil {
		return fmt.Errorf("TransferCredits: %w", err)
	}
	sellerIdentity, err := rm.CallerID()
	if err != nil {
		return fmt.Errorf("TransferCredits: %w", err)
	}

	if err := s.validateIdentity(buyerIdentity, "buyerIdentity"); err != nil {
		return fmt.Errorf("TransferCredits: %w", err)
	}
	if amount == 0 {
		return errors.New("TransferCredits: amount must be positive")
	}

	seller, err := s.getAccount(ctx, sellerIdentity)
	if err != nil {
		return fmt.Errorf("TransferCredits: seller: %w", err)
	}
	if seller.TotalCredits < amount {
		return fmt.Errorf("TransferCredits: %w: seller '%s' holds %d, needs %d",
			model.ErrInsufficientBalance, sellerIdentity, seller.TotalCredits, amount)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("TransferCredits: %w", err)
	}

	if sellerIdentity == buyerIdentity {
		// Self-trade: balance is unchanged, but both participations are
		// recorded, at consecutive sequence ids of the one account.
		first := model.CarbonTrade{
			TradeID: seller.TradeCount, Seller: sellerIdentity, Buyer: buyerIdentity,
			Amount: amount, TradeDate: now, IsValid: true,
		}
		second := first
		second.TradeID = seller.TradeCount + 1
		if err := s.putTrade(ctx, sellerIdentity, &first); err != nil {
			return fmt.Errorf("TransferCredits: %w", err)
		}
		if err := s.putTrade(ctx, sellerIdentity, &second); err != nil {
			return fmt.Errorf("TransferCredits: %w", err)
		}
		seller.TradeCount += 2
		if err := s.putAccount(ctx, seller); err != nil {
			return fmt.Errorf("TransferCredits: %w", err)
		}
		s.emitTradeEvent(ctx, &first, seller.TotalCredits, seller.TotalCredits)
		logger.Infof("Self-trade of %d units recorded for '%s' (tradeIds=%d,%d)", amount, sellerIdentity, first.TradeID, second.TradeID)
		return nil
	}

	buyer, err := s.getAccount(ctx, buyerIdentity)
	if err != nil {
		return fmt.Errorf("TransferCredits: buyer: %w", err)
	}
	if amount > math.MaxUint64-buyer.TotalCredits {
		return fmt.Errorf("TransferCredits: %w: buyer '%s' holds %d, cannot add %d",
			model.ErrBalanceOverflow, buyerIdentity, buyer.TotalCredits, amount)
	}

	sellerTrade := model.CarbonTrade{
		TradeID: seller.TradeCount, Seller: sellerIdentity, Buyer: buyerIdentity,
		Amount: amount, TradeDate: now, IsValid: true,
	}
	buyerTrade := sellerTrade
	buyerTrade.TradeID = buyer.TradeCount

	seller.TotalCredits -= amount
	seller.TradeCount++
	buyer.TotalCredits += amount
	buyer.TradeCount++

	if err := s.putTrade(ctx, sellerIdentity, &sellerTrade); err != nil {
		return fmt.Errorf("TransferCredits: %w", err)
	}
	if err := s.putTrade(ctx, buyerIdentity, &buyerTrade); err != nil {
		return fmt.Errorf("TransferCredits: %w", err)
	}
	if err := s.putAccount(ctx, seller); err != nil {
		return fmt.Errorf("TransferCredits: %w", err)
	}
	if err := s.putAccount(ctx, buyer); err != nil {
		return fmt.Errorf("TransferCredits: %w", err)
	}

	s.emitTradeEvent(ctx, &sellerTrade, seller.TotalCredits, buyer.TotalCredits)
	logger.Infof("Transferred %d units from '%s' (tradeId=%d, balance=%d) to '%s' (tradeId=%d, balance=%d)",
		amount, sellerIdentity, sellerTrade.TradeID, seller.TotalCredits, buyerIdentity, buyerTrade.TradeID, buyer.TotalCredits)
	return nil
}

func (s *CarbonRegistryContract) emitTradeEvent(ctx contractapi.TransactionContextInterface, trade *model.CarbonTrade, sellerBalance, buyerBalance uint64) {
	s.emitRegistryEvent(ctx, "CreditsTransferred", map[string]interface{}{
		"seller":        trade.Seller,
		"buyer":         trade.Buyer,
		"amount":        trade.Amount,
		"sellerBalance": sellerBalance,
		"buyerBalance":  buyerBalance,
	})
}

// GetTradeRecord returns a read-only snapshot of one trade record from an
// account's log. Caller must hold the TRADER role. Fails with RecordNotFound
// if the record at that id is absent or marked invalid.
func (s *CarbonRegistryContract) GetTradeRecord(ctx contractapi.TransactionContextInterface, identity string, tradeID uint64) (*model.CarbonTrade, error) {
	rm := NewRoleManager(ctx)
	if err := rm.RequireRole(model.RoleTrader); err != nil {
		return nil, fmt.Errorf("GetTradeRecord: %w", err)
	}
	if err := s.validateIdentity(identity, "identity"); err != nil {
		return nil, fmt.Errorf("GetTradeRecord: %w", err)
	}
	trade, err := s.getTrade(ctx, identity, tradeID)
	if err != nil {
		return nil, fmt.Errorf("GetTradeRecord: %w", err)
	}
	logger.Debugf("GetTradeRecord: trade %d of '%s' read", tradeID, identity)
	return trade, nil
}

// GetTradeHistory returns every trade record in an account's log, in
// sequence order. Caller must hold the TRADER role.
func (s *CarbonRegistryContract) GetTradeHistory(ctx contractapi.TransactionContextInterface, identity string) ([]*model.CarbonTrade, error) {
	rm := NewRoleManager(ctx)
	if err := rm.RequireRole(model.RoleTrader); err != nil {
		return nil, fmt.Errorf("GetTradeHistory: %w", err)
	}
	if err := s.validateIdentity(identity, "identity"); err != nil {
		return nil, fmt.Errorf("GetTradeHistory: %w", err)
	}
	if _, err := s.getAccount(ctx, identity); err != nil {
		return nil, fmt.Errorf("GetTradeHistory: %w", err)
	}

	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(tradeObjectType, []string{identity})
	if err != nil {
		return nil, fmt.Errorf("GetTradeHistory: failed to get trades iterator for '%s': %w", identity, err)
	}
	defer resultsIterator.Close()

	trades := []*model.CarbonTrade{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetTradeHistory: Failed to get next trade from iterator: %v. Skipping.", iterErr)
			continue
		}
		var trade model.CarbonTrade
		if err := json.Unmarshal(queryResponse.Value, &trade); err != nil {
			logger.Warningf("GetTradeHistory: Failed to unmarshal trade data for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		trades = append(trades, &trade)
	}
	logger.Debugf("GetTradeHistory: Returning %d trade records for '%s'", len(trades), identity)
	return trades, nil
}

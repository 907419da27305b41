package model

import "time"

// Role is a named capability that gates registry operations. The set of
// roles is closed; the super-admin is a distinguished identity recorded in
// RegistryConfig, not a member of this set.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTrader  Role = "TRADER"
	RoleAuditor Role = "AUDITOR"
	RoleIssuer  Role = "ISSUER"
)

// roleIndexes fixes the numeric encoding accepted by CheckRole. The mapping
// is established once and never changes.
var roleIndexes = [...]Role{RoleAdmin, RoleTrader, RoleAuditor, RoleIssuer}

// ValidRoles defines the set of grantable roles in the system.
var ValidRoles = map[Role]bool{
	RoleAdmin:   true,
	RoleTrader:  true,
	RoleAuditor: true,
	RoleIssuer:  true,
}

// RoleByIndex resolves the fixed numeric role encoding (0=ADMIN, 1=TRADER,
// 2=AUDITOR, 3=ISSUER). The second return is false for an unknown index.
func RoleByIndex(index uint64) (Role, bool) {
	if index >= uint64(len(roleIndexes)) {
		return "", false
	}
	return roleIndexes[index], true
}

// RoleNames lists the grantable role tokens, in index order.
func RoleNames() []string {
	names := make([]string, 0, len(roleIndexes))
	for _, r := range roleIndexes {
		names = append(names, string(r))
	}
	return names
}

// RegistryConfig is the one-shot initialization record for the registry.
// AdminTransferDelaySeconds is a pass-through value: the waiting period
// before super-admin control may be handed off is enforced off-chain.
type RegistryConfig struct {
	ObjectType                string    `json:"objectType"`
	SuperAdmin                string    `json:"superAdmin"`
	AdminTransferDelaySeconds uint64    `json:"adminTransferDelaySeconds"`
	InitializedAt             time.Time `json:"initializedAt"`
}

// Account represents one registered organization. Balances and counters are
// mutated only by issuance and trade operations; accounts are never deleted.
type Account struct {
	ObjectType       string    `json:"objectType"`
	Identity         string    `json:"identity"`
	OrganizationName string    `json:"organizationName"`
	TotalCredits     uint64    `json:"totalCredits"`
	CreditCount      uint64    `json:"creditCount"` // next credit sequence id
	TradeCount       uint64    `json:"tradeCount"`  // next trade sequence id
	IsValid          bool      `json:"isValid"`
	RegisteredBy     string    `json:"registeredBy"`
	RegisteredAt     time.Time `json:"registeredAt"`
}

// CarbonCredit is an immutable record of units issued to an account. It is
// owned exclusively by the receiving account's log and never transferred.
type CarbonCredit struct {
	CreditID   uint64    `json:"creditId"`
	Amount     uint64    `json:"amount"`
	IssuedDate time.Time `json:"issuedDate"`
	IssuedBy   string    `json:"issuedBy"`
	IsValid    bool      `json:"isValid"`
}

// CarbonTrade is an immutable record of a bilateral transfer. One copy is
// written into each counterparty's log; TradeID is the sequence id within
// the log that holds the copy.
type CarbonTrade struct {
	TradeID   uint64    `json:"tradeId"`
	Seller    string    `json:"seller"`
	Buyer     string    `json:"buyer"`
	Amount    uint64    `json:"amount"`
	TradeDate time.Time `json:"tradeDate"`
	IsValid   bool      `json:"isValid"`
}

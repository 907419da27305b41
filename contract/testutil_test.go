package contract

import (
	"crypto/x509"
	"fmt"
	"testing"

	"carbonregistry/model"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/require"
)

const (
	superAdminID = "x509::CN=registry-operator::O=RegistryOp"
	issuerID     = "x509::CN=verifier::O=CarbonVerify"
	auditorID    = "x509::CN=auditor::O=Watchdog"
	orgAcmeID    = "x509::CN=acme::O=AcmeEnergy"
	orgGlobexID  = "x509::CN=globex::O=GlobexSteel"
	strangerID   = "x509::CN=stranger::O=Nowhere"
)

type fakeClientIdentity struct {
	id    string
	mspID string
}

func (f *fakeClientIdentity) GetID() (string, error)                         { return f.id, nil }
func (f *fakeClientIdentity) GetMSPID() (string, error)                      { return f.mspID, nil }
func (f *fakeClientIdentity) GetX509Certificate() (*x509.Certificate, error) { return nil, nil }
func (f *fakeClientIdentity) GetAttributeValue(string) (string, bool, error) { return "", false, nil }
func (f *fakeClientIdentity) AssertAttributeValue(string, string) error      { return nil }

var _ cid.ClientIdentity = (*fakeClientIdentity)(nil)

// registryHarness drives the contract against a mock stub, switching the
// calling identity per operation the way the peer would.
type registryHarness struct {
	t        *testing.T
	contract *CarbonRegistryContract
	stub     *shimtest.MockStub
	ctx      *contractapi.TransactionContext
	txSeq    int
}

func newRegistryHarness(t *testing.T) *registryHarness {
	stub := shimtest.NewMockStub("carbonregistry", nil)
	ctx := &contractapi.TransactionContext{}
	ctx.SetStub(stub)
	return &registryHarness{t: t, contract: &CarbonRegistryContract{}, stub: stub, ctx: ctx}
}

// as runs fn inside a mock transaction with the given caller identity.
func (h *registryHarness) as(callerID string, fn func() error) error {
	h.ctx.SetClientIdentity(&fakeClientIdentity{id: callerID, mspID: "RegistryMSP"})
	h.txSeq++
	txID := fmt.Sprintf("tx%04d", h.txSeq)
	h.stub.MockTransactionStart(txID)
	defer h.stub.MockTransactionEnd(txID)
	return fn()
}

// initRegistry bootstraps the registry and the standing grants most tests
// need: one issuer and one auditor.
func (h *registryHarness) initRegistry() {
	h.t.Helper()
	require.NoError(h.t, h.as(superAdminID, func() error {
		return h.contract.InitRegistry(h.ctx, superAdminID, 3600)
	}))
	require.NoError(h.t, h.as(superAdminID, func() error {
		return h.contract.GrantRole(h.ctx, issuerID, "ISSUER")
	}))
	require.NoError(h.t, h.as(superAdminID, func() error {
		return h.contract.GrantRole(h.ctx, auditorID, "AUDITOR")
	}))
}

func (h *registryHarness) register(identity, organizationName string) {
	h.t.Helper()
	require.NoError(h.t, h.as(superAdminID, func() error {
		return h.contract.RegisterAccount(h.ctx, identity, organizationName)
	}))
}

func (h *registryHarness) issue(target string, amount uint64) {
	h.t.Helper()
	require.NoError(h.t, h.as(issuerID, func() error {
		return h.contract.IssueCredit(h.ctx, target, amount)
	}))
}

func (h *registryHarness) transfer(seller, buyer string, amount uint64) error {
	return h.as(seller, func() error {
		return h.contract.TransferCredits(h.ctx, buyer, amount)
	})
}

func (h *registryHarness) account(identity string) *model.Account {
	h.t.Helper()
	var acct *model.Account
	require.NoError(h.t, h.as(superAdminID, func() error {
		var err error
		acct, err = h.contract.GetAccount(h.ctx, identity)
		return err
	}))
	return acct
}

// hasRole wraps the public HasRole query for assertions.
func (h *registryHarness) hasRole(identity, role string) (bool, error) {
	var has bool
	err := h.as(superAdminID, func() error {
		var err error
		has, err = h.contract.HasRole(h.ctx, identity, role)
		return err
	})
	return has, err
}

func (h *registryHarness) balance(identity string) uint64 {
	h.t.Helper()
	return h.account(identity).TotalCredits
}

// drainEventNames empties the mock stub's event channel and returns the
// event names seen, in emission order.
func (h *registryHarness) drainEventNames() []string {
	names := []string{}
	for {
		select {
		case ev := <-h.stub.ChaincodeEventsChannel:
			names = append(names, ev.EventName)
		default:
			return names
		}
	}
}

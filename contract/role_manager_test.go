package contract

import (
	"testing"

	"carbonregistry/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRegistryRunsOnce(t *testing.T) {
	h := newRegistryHarness(t)

	require.NoError(t, h.as(superAdminID, func() error {
		return h.contract.InitRegistry(h.ctx, superAdminID, 7200)
	}))

	err := h.as(superAdminID, func() error {
		return h.contract.InitRegistry(h.ctx, superAdminID, 60)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")

	// The original config survives the rejected re-init.
	var cfg *model.RegistryConfig
	require.NoError(t, h.as(superAdminID, func() error {
		var err error
		cfg, err = h.contract.GetRegistryConfig(h.ctx)
		return err
	}))
	assert.Equal(t, superAdminID, cfg.SuperAdmin)
	assert.Equal(t, uint64(7200), cfg.AdminTransferDelaySeconds)
	assert.False(t, cfg.InitializedAt.IsZero())
}

func TestInitRegistryRejectsEmptySuperAdmin(t *testing.T) {
	h := newRegistryHarness(t)
	err := h.as(superAdminID, func() error {
		return h.contract.InitRegistry(h.ctx, "   ", 0)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")
}

func TestUninitializedRegistryFailsClosed(t *testing.T) {
	h := newRegistryHarness(t)
	err := h.as(superAdminID, func() error {
		return h.contract.RegisterAccount(h.ctx, orgAcmeID, "Acme Energy")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestGrantRoleRequiresSuperAdmin(t *testing.T) {
	h := newRegistryHarness(t)
	h.initRegistry()

	err := h.as(strangerID, func() error {
		return h.contract.GrantRole(h.ctx, orgAcmeID, "ISSUER")
	})
	require.ErrorIs(t, err, model.ErrUnauthorized)

	has, err := h.hasRole(orgAcmeID, "ISSUER")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGrantRoleRejectsUnknownRole(t *testing.T) {
	h := newRegistryHarness(t)
	h.initRegistry()

	err := h.as(superAdminID, func() error {
		return h.contract.GrantRole(h.ctx, orgAcmeID, "OVERLORD")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role")
}

func TestGrantAndRevokeRole(t *testing.T) {
	h := newRegistryHarness(t)
	h.initRegistry()

	require.NoError(t, h.as(superAdminID, func() error {
		return h.contract.GrantRole(h.ctx, orgAcmeID, "auditor") // case-insensitive token
	}))
	has, err := h.hasRole(orgAcmeID, "AUDITOR")
	require.NoError(t, err)
	assert.True(t, has)

	// Granting again is a no-op.
	require.NoError(t, h.as(superAdminID, func() error {
		return h.contract.GrantRole(h.ctx, orgAcmeID, "AUDITOR")
	}))

	require.NoError(t, h.as(superAdminID, func() error {
		return h.contract.RevokeRole(h.ctx, orgAcmeID, "AUDITOR")
	}))
	has, err = h.hasRole(orgAcmeID, "AUDITOR")
	require.NoError(t, err)
	assert.False(t, has)

	// Revoking a role the identity does not hold is a no-op.
	require.NoError(t, h.as(superAdminID, func() error {
		return h.contract.RevokeRole(h.ctx, orgAcmeID, "AUDITOR")
	}))
}

func TestCheckRoleIndexMapping(t *testing.T) {
	h := newRegistryHarness(t)
	h.initRegistry()

	grants := map[string]string{
		"x509::CN=a::O=T": "ADMIN",
		"x509::CN=b::O=T": "TRADER",
		"x509::CN=c::O=T": "AUDITOR",
		"x509::CN=d::O=T": "ISSUER",
	}
	for identity, role := range grants {
		require.NoError(t, h.as(superAdminID, func() error {
			return h.contract.GrantRole(h.ctx, identity, role)
		}))
	}

	// 0=ADMIN, 1=TRADER, 2=AUDITOR, 3=ISSUER.
	checks := []struct {
		identity string
		index    uint64
		want     bool
	}{
		{"x509::CN=a::O=T", 0, true},
		{"x509::CN=a::O=T", 1, false},
		{"x509::CN=b::O=T", 1, true},
		{"x509::CN=c::O=T", 2, true},
		{"x509::CN=d::O=T", 3, true},
		{"x509::CN=d::O=T", 0, false},
	}
	for _, tc := range checks {
		var has bool
		require.NoError(t, h.as(superAdminID, func() error {
			var err error
			has, err = h.contract.CheckRole(h.ctx, tc.identity, tc.index)
			return err
		}))
		assert.Equal(t, tc.want, has, "identity %s index %d", tc.identity, tc.index)
	}
}

func TestCheckRoleRejectsOutOfRangeIndex(t *testing.T) {
	h := newRegistryHarness(t)
	h.initRegistry()

	err := h.as(superAdminID, func() error {
		_, err := h.contract.CheckRole(h.ctx, orgAcmeID, 4)
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestCheckRoleRequiresSuperAdmin(t *testing.T) {
	h := newRegistryHarness(t)
	h.initRegistry()

	err := h.as(auditorID, func() error {
		_, err := h.contract.CheckRole(h.ctx, issuerID, 3)
		return err
	})
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestGetRegistryConfigRequiresSuperAdmin(t *testing.T) {
	h := newRegistryHarness(t)
	h.initRegistry()

	err := h.as(strangerID, func() error {
		_, err := h.contract.GetRegistryConfig(h.ctx)
		return err
	})
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestRoleGrantEventsEmitted(t *testing.T) {
	h := newRegistryHarness(t)
	h.initRegistry()
	h.drainEventNames()

	require.NoError(t, h.as(superAdminID, func() error {
		return h.contract.GrantRole(h.ctx, orgAcmeID, "ISSUER")
	}))
	require.NoError(t, h.as(superAdminID, func() error {
		return h.contract.RevokeRole(h.ctx, orgAcmeID, "ISSUER")
	}))

	assert.Equal(t, []string{"RoleGranted", "RoleRevoked"}, h.drainEventNames())
}

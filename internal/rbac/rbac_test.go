package rbac

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role     string
		perm     string
		expected bool
	}{
		{RoleSystem, PermRecordDonation, true},
		{RoleSystem, PermReleaseEscrow, true},
		{RoleSystem, PermViewLedger, true},
		{RoleAdmin, PermReverse, true},
		{RoleAdmin, PermResolveDispute, true},
		{RoleProvider, PermRequestPayout, true},
		{RoleBeneficiary, PermCreateCampaign, true},
		{RoleDonor, PermRaiseDispute, true},

		// Separation of duties
		{RoleSystem, PermReverse, false},
		{RoleSystem, PermResolveDispute, false},
		{RoleAdmin, PermRecordDonation, false},
		{RoleAdmin, PermRequestPayout, false},
		{RoleProvider, PermReleaseEscrow, false},
		{RoleBeneficiary, PermReleaseEscrow, false},
		{RoleDonor, PermViewLedger, false},
		{"ROOT", PermViewLedger, false},
	}

	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.expected {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.expected)
		}
	}
}

func TestEveryFinancialPermissionIsGranted(t *testing.T) {
	granted := map[string]bool{}
	for _, perms := range RolePermissions {
		for _, p := range perms {
			granted[p] = true
		}
	}
	for _, p := range []string{
		PermRecordDonation, PermDeductFee, PermReleaseEscrow, PermRefund,
		PermRequestPayout, PermTopUpWallet, PermReverse,
	} {
		if !IsFinancialOperation(p) {
			t.Errorf("IsFinancialOperation(%q) = false", p)
		}
		if !granted[p] {
			t.Errorf("no role holds %q", p)
		}
	}
	if IsFinancialOperation(PermViewLedger) {
		t.Error("view_ledger is not a financial operation")
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RoleAdmin, RoleDonor, RoleBeneficiary, RoleProvider, RoleSystem} {
		if !ValidRole(r) {
			t.Errorf("ValidRole(%q) = false", r)
		}
	}
	if ValidRole("admin") {
		t.Error("roles are upper-case")
	}
}

package rbac

// Role constants
const (
	RoleAdmin       = "ADMIN"
	RoleDonor       = "DONOR"
	RoleBeneficiary = "BENEFICIARY"
	RoleProvider    = "PROVIDER"
	RoleSystem      = "SYSTEM"
)

// Permission constants
const (
	PermRecordDonation   = "record_donation"
	PermDeductFee        = "deduct_fee"
	PermReleaseEscrow    = "release_escrow"
	PermRefund           = "refund"
	PermRequestPayout    = "request_payout"
	PermTopUpWallet      = "top_up_wallet"
	PermReverse          = "reverse_transaction"
	PermViewLedger       = "view_ledger"
	PermCreateCampaign   = "create_campaign"
	PermModerateCampaign = "moderate_campaign"
	PermCancelCampaign   = "cancel_campaign"
	PermConfirmDelivery  = "confirm_delivery"
	PermRaiseDispute     = "raise_dispute"
	PermResolveDispute   = "resolve_dispute"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleAdmin: {
		PermDeductFee, PermReleaseEscrow, PermRefund, PermReverse, PermViewLedger,
		PermModerateCampaign, PermCancelCampaign, PermRaiseDispute, PermResolveDispute,
	},
	RoleSystem: {
		PermRecordDonation, PermDeductFee, PermReleaseEscrow, PermRefund, PermTopUpWallet,
		PermViewLedger,
		// System CANNOT: PermReverse, PermResolveDispute
	},
	RoleProvider: {
		PermRequestPayout, PermConfirmDelivery, PermRaiseDispute,
	},
	RoleBeneficiary: {
		PermCreateCampaign, PermCancelCampaign, PermConfirmDelivery, PermRaiseDispute,
	},
	RoleDonor: {
		PermRaiseDispute,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role may adjudicate disputes and moderate.
func IsAdmin(role string) bool {
	return role == RoleAdmin
}

// IsFinancialOperation checks if permission moves money.
func IsFinancialOperation(permission string) bool {
	switch permission {
	case PermRecordDonation, PermDeductFee, PermReleaseEscrow, PermRefund,
		PermRequestPayout, PermTopUpWallet, PermReverse:
		return true
	}
	return false
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

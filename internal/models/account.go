package models

import (
	"fmt"
	"strings"
)

// Account is one entry of the fixed chart of accounts.
type Account string

const (
	AccountUserWallet             Account = "USER_WALLET"
	AccountCampaignEscrow         Account = "CAMPAIGN_ESCROW"
	AccountProviderBalance        Account = "PROVIDER_BALANCE"
	AccountPlatformRevenue        Account = "PLATFORM_REVENUE"
	AccountTaxPayableVAT          Account = "TAX_PAYABLE_VAT"
	AccountTaxPayableWHT          Account = "TAX_PAYABLE_WHT"
	AccountRefundLiability        Account = "REFUND_LIABILITY"
	AccountPaymentGatewayClearing Account = "PAYMENT_GATEWAY_CLEARING"
)

// ChartOfAccounts lists every account in a stable order.
var ChartOfAccounts = []Account{
	AccountUserWallet,
	AccountCampaignEscrow,
	AccountProviderBalance,
	AccountPlatformRevenue,
	AccountTaxPayableVAT,
	AccountTaxPayableWHT,
	AccountRefundLiability,
	AccountPaymentGatewayClearing,
}

func (a Account) Valid() bool {
	for _, acc := range ChartOfAccounts {
		if acc == a {
			return true
		}
	}
	return false
}

func (a Account) String() string { return string(a) }

// ParseAccount accepts the account tag case-insensitively.
func ParseAccount(s string) (Account, error) {
	a := Account(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: unknown account %q", ErrInvalidInput, s)
	}
	return a, nil
}

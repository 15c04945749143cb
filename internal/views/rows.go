package views

import "github.com/loangraph/marketsync/internal/market"

type CampaignRow struct {
	market.Campaign
	BorrowerName string `json:"borrower_name"`
	Open         bool   `json:"open"`
}

type InvestmentRow struct {
	market.Investment
	InvestorName         string           `json:"investor_name"`
	CanMakeTransferOffer bool             `json:"can_make_transfer_offer"`
	Contract             *market.Contract `json:"contract,omitempty"`
}

type TransferRow struct {
	market.Transfer
	BuyerName string `json:"buyer_name"`
}

type LoanRequestRow struct {
	market.LoanRequest
	BorrowerName string `json:"borrower_name"`
}

func campaignRows(names Identity, campaigns []market.Campaign) []CampaignRow {
	out := make([]CampaignRow, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, CampaignRow{Campaign: c, BorrowerName: names.DisplayName(c.UserID), Open: c.IsOpen()})
	}
	return out
}

func investmentRows(names Identity, investments []market.Investment, contracts map[string]market.Contract) []InvestmentRow {
	out := make([]InvestmentRow, 0, len(investments))
	for _, inv := range investments {
		row := InvestmentRow{
			Investment:           inv,
			InvestorName:         names.DisplayName(inv.UserID),
			CanMakeTransferOffer: inv.CanMakeTransferOffer(),
		}
		if c, ok := contracts[inv.OwnershipContract()]; ok {
			row.Contract = &c
		}
		out = append(out, row)
	}
	return out
}

// pendingTransfers lists the open transfer offers on the given investments.
func pendingTransfers(names Identity, investments []market.Investment) []TransferRow {
	out := []TransferRow{}
	for _, inv := range investments {
		for _, t := range market.FilterByStatus(inv.Transfers, market.StatusPending) {
			out = append(out, TransferRow{Transfer: t, BuyerName: names.DisplayName(t.UserID)})
		}
	}
	return out
}

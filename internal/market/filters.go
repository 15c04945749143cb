package market

import "sort"

type Statused interface {
	CurrentStatus() Status
}

type Keyed interface {
	Key() Key
}

// ContractBearer is anything whose ownership is proven by a contract.
type ContractBearer interface {
	OwnershipContract() string
}

// FilterByStatus keeps the items whose status is one of statuses. Order is
// preserved, so filtering an already filtered slice again is a no-op.
func FilterByStatus[T Statused](items []T, statuses ...Status) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if statusIn(item.CurrentStatus(), statuses...) {
			out = append(out, item)
		}
	}
	return out
}

// ContainsKey matches by (id, user_id) pair, never by identity: directory
// and list refreshes replace every record.
func ContainsKey[T Keyed](items []T, k Key) bool {
	for _, item := range items {
		if item.Key() == k {
			return true
		}
	}
	return false
}

// ExcludeOwned drops the candidates whose key matches one of mine. Linear
// scan per candidate.
func ExcludeOwned[T Keyed](candidates, mine []T) []T {
	out := make([]T, 0, len(candidates))
	for _, c := range candidates {
		if ContainsKey(mine, c.Key()) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FindByKey returns the first item with the given key.
func FindByKey[T Keyed](items []T, k Key) (T, bool) {
	for _, item := range items {
		if item.Key() == k {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// IsOpen reports whether the campaign still accepts money.
func (c Campaign) IsOpen() bool {
	return c.AmountInvested.LessThan(c.Amount)
}

func OpenCampaigns(campaigns []Campaign) []Campaign {
	out := make([]Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if c.IsOpen() {
			out = append(out, c)
		}
	}
	return out
}

func CompletedCampaigns(campaigns []Campaign) []Campaign {
	out := make([]Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if !c.IsOpen() {
			out = append(out, c)
		}
	}
	return out
}

// CampaignInvestments flattens the investments of every campaign.
func CampaignInvestments(campaigns []Campaign) []Investment {
	var out []Investment
	for _, c := range campaigns {
		out = append(out, c.Investments...)
	}
	return out
}

// CanMakeTransferOffer is true for a FORSALE investment without an
// outstanding PENDING transfer. Only one offer may be open at a time.
func (i Investment) CanMakeTransferOffer() bool {
	if i.Status != StatusForSale {
		return false
	}
	for _, t := range i.Transfers {
		if t.Status == StatusPending {
			return false
		}
	}
	return true
}

// OwnershipContract returns the contract that currently proves who owns the
// investment: the confirmation of its latest transfer, or its own contract
// when it was never resold.
func (i Investment) OwnershipContract() string {
	if n := len(i.Transfers); n > 0 {
		return i.Transfers[n-1].ConfirmationContractID
	}
	return i.ContractID
}

func (m Mortgage) OwnershipContract() string {
	return m.ContractID
}

// ContractIDs maps items to their ownership contracts, skipping empty ids
// and duplicates. The result is sorted.
func ContractIDs[T ContractBearer](items []T) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, item := range items {
		id := item.OwnershipContract()
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MortgagesByBank keeps the mortgages issued by bankID.
func MortgagesByBank(mortgages []Mortgage, bankID string) []Mortgage {
	out := make([]Mortgage, 0, len(mortgages))
	for _, m := range mortgages {
		if m.BankID == bankID {
			out = append(out, m)
		}
	}
	return out
}

// CampaignsForMortgages keeps the campaigns backing one of the mortgages.
func CampaignsForMortgages(campaigns []Campaign, mortgages []Mortgage) []Campaign {
	out := make([]Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if ContainsKey(mortgages, c.MortgageKey()) {
			out = append(out, c)
		}
	}
	return out
}

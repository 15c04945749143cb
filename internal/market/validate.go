package market

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRecord  = errors.New("invalid_record")
	ErrInvalidProfile = errors.New("invalid_profile")
)

func invalid(kind string, id any, reason string) error {
	return fmt.Errorf("%w: %s %v: %s", ErrInvalidRecord, kind, id, reason)
}

func statusIn(s Status, allowed ...Status) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return invalid("user", "?", "missing id")
	}
	if !u.Role.Valid() {
		return invalid("user", u.ID, fmt.Sprintf("unknown role %q", u.Role))
	}
	return nil
}

func (l LoanRequest) Validate() error {
	if l.UserID == "" {
		return invalid("loan request", l.ID, "missing user_id")
	}
	if !statusIn(l.Status, StatusPending, StatusAccepted, StatusRejected) {
		return invalid("loan request", l.ID, fmt.Sprintf("unknown status %q", l.Status))
	}
	return nil
}

func (m Mortgage) Validate() error {
	if m.UserID == "" {
		return invalid("mortgage", m.ID, "missing user_id")
	}
	if !statusIn(m.Status, StatusPending, StatusAccepted, StatusRejected) {
		return invalid("mortgage", m.ID, fmt.Sprintf("unknown status %q", m.Status))
	}
	return nil
}

func (t Transfer) Validate() error {
	if t.UserID == "" || t.InvestmentUserID == "" {
		return invalid("transfer", t.ID, "missing user_id or investment_user_id")
	}
	if !statusIn(t.Status, StatusPending, StatusAccepted, StatusDeclined) {
		return invalid("transfer", t.ID, fmt.Sprintf("unknown status %q", t.Status))
	}
	return nil
}

func (i Investment) Validate() error {
	if i.UserID == "" || i.CampaignUserID == "" {
		return invalid("investment", i.ID, "missing user_id or campaign_user_id")
	}
	if !statusIn(i.Status, StatusPending, StatusAccepted, StatusRejected, StatusForSale) {
		return invalid("investment", i.ID, fmt.Sprintf("unknown status %q", i.Status))
	}
	for _, t := range i.Transfers {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Campaign) Validate() error {
	if c.UserID == "" {
		return invalid("campaign", c.ID, "missing user_id")
	}
	if c.Amount.IsNegative() || c.AmountInvested.IsNegative() {
		return invalid("campaign", c.ID, "negative amount")
	}
	for _, inv := range c.Investments {
		if err := inv.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (b Block) Validate() error {
	if b.ID == "" {
		return invalid("block", "?", "missing id")
	}
	return nil
}

func (c Contract) Validate() error {
	if c.ID == "" {
		return invalid("contract", "?", "missing id")
	}
	return nil
}

// Validate applies the role-dependent required fields the backend enforces
// on PUT /you/profile. Borrowers also need a current address and documents.
func (p Profile) Validate() error {
	if p.Role != RoleBorrower && p.Role != RoleInvestor {
		return fmt.Errorf("%w: role must be BORROWER or INVESTOR", ErrInvalidProfile)
	}
	required := map[string]string{
		"first_name":   p.FirstName,
		"last_name":    p.LastName,
		"email":        p.Email,
		"iban":         p.IBAN,
		"phone_number": p.PhoneNumber,
	}
	if p.Role == RoleBorrower {
		required["current_postal_code"] = p.CurrentPostalCode
		required["current_house_number"] = p.CurrentHouseNumber
		required["current_address"] = p.CurrentAddress
	}
	for _, field := range []string{"first_name", "last_name", "email", "iban", "phone_number", "current_postal_code", "current_house_number", "current_address"} {
		v, ok := required[field]
		if ok && strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidProfile, field)
		}
	}
	if p.Role == RoleBorrower && len(p.DocumentList) == 0 {
		return fmt.Errorf("%w: missing document_list", ErrInvalidProfile)
	}
	return nil
}

// Validator is implemented by every record decoded from the backend.
type Validator interface {
	Validate() error
}

// KeepValid drops records that fail validation and returns the errors for
// the dropped ones.
func KeepValid[T Validator](items []T) ([]T, []error) {
	out := make([]T, 0, len(items))
	var errs []error
	for _, item := range items {
		if err := item.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, item)
	}
	return out, errs
}

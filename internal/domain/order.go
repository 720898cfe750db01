package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// OrderID accepts both numeric and string ids from the commerce payload.
type OrderID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *OrderID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = OrderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	*id = OrderID(n.String())
	return nil
}

// PurchaseEvent is the subset of an orders/paid payload the ledger cares about.
type PurchaseEvent struct {
	OrderID      OrderID `json:"id"`
	Email        string  `json:"email"`
	ContactEmail string  `json:"contact_email"`
	Customer     *struct {
		Email string `json:"email"`
	} `json:"customer,omitempty"`
}

// ParsePurchaseEvent decodes a raw webhook body.
func ParsePurchaseEvent(raw []byte) (PurchaseEvent, error) {
	var ev PurchaseEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return PurchaseEvent{}, fmt.Errorf("parsing purchase event: %w", err)
	}
	return ev, nil
}

// PurchaserEmail returns the normalized purchaser email, or "" if the order
// carries none.
func (e PurchaseEvent) PurchaserEmail() string {
	candidates := []string{e.Email, e.ContactEmail}
	if e.Customer != nil {
		candidates = append(candidates, e.Customer.Email)
	}
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return NormalizeEmail(c)
		}
	}
	return ""
}

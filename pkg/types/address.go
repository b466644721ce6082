package types

// CustomerAddress is the delivery address captured with an order. Stored as a
// JSON blob; nothing downstream joins on it.
type CustomerAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code,omitempty"`
}

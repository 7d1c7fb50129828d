package domain

import "time"

// Product is the listing a negotiation refers to. Inventory is the total
// quantity listed; Quantity is the live available stock, decremented only by
// the conditional update in the order path.
type Product struct {
	ID        string    `json:"id"`
	SellerID  string    `json:"seller_id"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Price     float64   `json:"price"`
	Location  string    `json:"location"`
	Inventory int       `json:"inventory"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SellerProfile is the slice of a seller's profile the snapshot reader
// needs to resolve a display name.
type SellerProfile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	CompanyName string `json:"company_name"`
}

// DisplayName resolves the seller name shown next to a product:
// company name, then full name, then username, then a placeholder.
func (p *SellerProfile) DisplayName() string {
	if p == nil {
		return "—"
	}
	for _, name := range []string{p.CompanyName, p.FullName, p.Username} {
		if name != "" {
			return name
		}
	}
	return "—"
}

// ProductSnapshot is the read-only projection of a product shown inside a
// conversation.
type ProductSnapshot struct {
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	PricePerUnit float64 `json:"price_per_unit"`
	Location     string  `json:"location"`
	Inventory    int     `json:"inventory"`
	SellerName   string  `json:"seller_name"`
}

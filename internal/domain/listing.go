package domain

import "time"

// Listing is a sell offer of claim tokens at a unit price. Listings are
// independently indexed per claim token and never merged; one seller may
// hold several concurrent listings for the same claim.
type Listing struct {
	Claim     ClaimID   `json:"claim"`
	Index     int64     `json:"index"`
	Seller    Account   `json:"seller"`
	Quantity  Money     `json:"quantity"`
	UnitPrice Money     `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}

// GrossPrice returns quantity * unit price in accounting units. Unit price
// is per whole claim unit, so the product is rescaled by the accounting
// factor.
func GrossPrice(quantity, unitPrice Money) Money {
	return mulDiv(quantity, unitPrice, MoneyFromWhole(1))
}

// TradeFill describes one listing fill inside a buy: the listing to take
// from and the quantity of claims to take.
type TradeFill struct {
	Index    int64 `json:"index"`
	Quantity Money `json:"quantity"`
}

package api

// QuoteResponse carries a freshly issued quote back to the caller. The
// amount is the human-readable money value; base-unit conversion happens
// when the quote is redeemed.
type QuoteResponse struct {
	QuoteID   string `json:"quoteId"`
	Amount    string `json:"amount"`
	ExpiresAt int64  `json:"expiresAt"`
}

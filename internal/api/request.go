package api

import (
	"fmt"
	"strings"
)

// QuoteCreateRequest is the payload to request a priced quote for the
// protected resource.
type QuoteCreateRequest struct {
	// ClientID is optional; when empty the X-Client-Id header, then the
	// shared anonymous identity, is used. It is an opaque, untrusted value.
	ClientID string `json:"clientId" example:"client-demo-01"`

	// NumberOfFiles drives the demo pricing: unit price per file.
	NumberOfFiles int `json:"numberOfFiles" example:"5"`
}

func (r QuoteCreateRequest) Validate() error {
	if r.NumberOfFiles <= 0 {
		return fmt.Errorf("numberOfFiles must be greater than 0")
	}
	if strings.ContainsAny(r.ClientID, " \t\r\n") {
		return fmt.Errorf("clientId must not contain whitespace")
	}
	return nil
}

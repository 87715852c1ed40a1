// Package paywall renders the browser-facing payment page for endpoints.
// Machine clients get the JSON 402; browsers get this page, which carries the
// same payment requirements in an embedded config blob for wallet scripts.
package paywall

import (
	"encoding/base64"
	"encoding/json"

	"github.com/relay402/server/internal/money"
	"github.com/relay402/server/internal/storage"
	"github.com/relay402/server/pkg/x402"
)

// PageConfig is the machine-readable blob embedded in the paywall page.
// Wallet scripts read it from the x-paywall-config meta tag.
type PageConfig struct {
	Endpoint struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		PriceUSD    string `json:"priceUsd"`
	} `json:"endpoint"`
	PaymentRequired        x402.PaymentRequired `json:"paymentRequired"`
	ChainID                int                  `json:"chainId"`
	WalletConnectProjectID string               `json:"walletConnectProjectId,omitempty"`
}

// BuildPageConfig assembles the config blob for an endpoint.
func BuildPageConfig(ep storage.Endpoint, required x402.PaymentRequired, walletConnectProjectID string) PageConfig {
	var cfg PageConfig
	cfg.Endpoint.Name = pageTitle(ep)
	cfg.Endpoint.Description = pageDescription(ep)
	cfg.Endpoint.PriceUSD = ep.PriceUSD.Format()
	cfg.PaymentRequired = required
	cfg.ChainID = x402.ChainIDFor(ep.Testnet)
	cfg.WalletConnectProjectID = firstNonEmpty(ep.Paywall.WalletConnectProjectID, walletConnectProjectID)
	return cfg
}

// Encode renders the config as base64 JSON for embedding.
func (c PageConfig) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

func pageTitle(ep storage.Endpoint) string {
	return firstNonEmpty(ep.Paywall.Title, ep.Name, ep.Slug)
}

func pageDescription(ep storage.Endpoint) string {
	return firstNonEmpty(ep.Paywall.Description, ep.Description)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// displayPrice formats the endpoint price for the page.
func displayPrice(price money.USD) string {
	return "$" + price.Format()
}

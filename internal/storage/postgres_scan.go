package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/relay402/server/internal/money"
)

// rowScanner covers *sql.Row and *sql.Rows for the shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// marshalEndpointJSON renders the endpoint's JSONB columns.
func marshalEndpointJSON(endpoint Endpoint) (authConfig, paywall []byte, err error) {
	if len(endpoint.AuthConfig) > 0 {
		authConfig, err = json.Marshal(endpoint.AuthConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal auth config: %w", err)
		}
	}
	paywall, err = json.Marshal(endpoint.Paywall)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal paywall branding: %w", err)
	}
	return authConfig, paywall, nil
}

func scanEndpoint(row *sql.Row) (Endpoint, error) {
	ep, err := scanEndpointFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Endpoint{}, ErrNotFound
	}
	return ep, err
}

func scanEndpointRows(rows *sql.Rows) (Endpoint, error) {
	return scanEndpointFrom(rows)
}

func scanEndpointFrom(scanner rowScanner) (Endpoint, error) {
	var (
		ep         Endpoint
		authKind   string
		authConfig []byte
		priceUSD   int64
		paywall    []byte
		cname      sql.NullString
	)
	err := scanner.Scan(&ep.ID, &ep.TenantID, &ep.Slug, &ep.Name, &ep.Description,
		&ep.UpstreamURL, &authKind, &authConfig, &priceUSD, &ep.PayTo, &ep.Testnet,
		&paywall, &ep.CustomTemplate, &cname, &ep.Active, &ep.RateLimitPerSec,
		&ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Endpoint{}, err
		}
		return Endpoint{}, fmt.Errorf("scan endpoint: %w", err)
	}

	ep.AuthKind = AuthKind(authKind)
	ep.PriceUSD = money.USD(priceUSD)
	ep.CNAME = cname.String
	if len(authConfig) > 0 {
		if err := json.Unmarshal(authConfig, &ep.AuthConfig); err != nil {
			return Endpoint{}, fmt.Errorf("unmarshal auth config: %w", err)
		}
	}
	if len(paywall) > 0 {
		if err := json.Unmarshal(paywall, &ep.Paywall); err != nil {
			return Endpoint{}, fmt.Errorf("unmarshal paywall branding: %w", err)
		}
	}
	return ep, nil
}

func scanPayment(scanner rowScanner) (Payment, error) {
	var (
		p          Payment
		endpointID sql.NullString
		txHash     sql.NullString
		amountUSD  int64
		status     string
		payload    []byte
		settlement []byte
		settledAt  sql.NullTime
	)
	err := scanner.Scan(&p.ID, &endpointID, &p.TenantID, &p.Payer, &amountUSD,
		&p.Network, &p.ChainID, &txHash, &status, &payload, &settlement,
		&p.RequestPath, &p.RequestMethod, &p.ErrorMessage, &p.CreatedAt, &settledAt)
	if err != nil {
		return Payment{}, fmt.Errorf("scan payment: %w", err)
	}

	p.EndpointID = endpointID.String
	p.TxHash = txHash.String
	p.AmountUSD = money.USD(amountUSD)
	p.Status = PaymentStatus(status)
	p.Payload = json.RawMessage(payload)
	p.Settlement = json.RawMessage(settlement)
	if settledAt.Valid {
		t := settledAt.Time.UTC()
		p.SettledAt = &t
	}
	return p, nil
}

// nullableString maps empty strings to SQL NULL.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullableBytes maps empty byte slices to SQL NULL.
func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

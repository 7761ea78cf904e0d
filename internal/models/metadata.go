package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Metadata kinds
const (
	MetadataKindGateway    = "gateway"
	MetadataKindAdjustment = "adjustment"
)

// GatewayMetadata carries the external payment-gateway context of a
// transaction: which capture it belongs to and what the gateway confirmed.
type GatewayMetadata struct {
	Provider        string `json:"provider"`
	CaptureID       string `json:"capture_id,omitempty"`
	ConfirmedAmount string `json:"confirmed_amount,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

// AdjustmentMetadata records a manual correction applied by an operator.
type AdjustmentMetadata struct {
	Operator string `json:"operator"`
	Reason   string `json:"reason"`
}

// TransactionMetadata is a closed set of metadata variants, stored as jsonb.
// Exactly the variant matching Kind is populated; unknown kinds are rejected
// at scan time so the ledger never carries untyped blobs.
type TransactionMetadata struct {
	Kind       string              `json:"kind,omitempty"`
	Gateway    *GatewayMetadata    `json:"gateway,omitempty"`
	Adjustment *AdjustmentMetadata `json:"adjustment,omitempty"`
}

// NewGatewayMetadata builds the gateway variant.
func NewGatewayMetadata(g GatewayMetadata) TransactionMetadata {
	return TransactionMetadata{Kind: MetadataKindGateway, Gateway: &g}
}

// NewAdjustmentMetadata builds the adjustment variant.
func NewAdjustmentMetadata(a AdjustmentMetadata) TransactionMetadata {
	return TransactionMetadata{Kind: MetadataKindAdjustment, Adjustment: &a}
}

// IsZero reports whether no variant is set.
func (m TransactionMetadata) IsZero() bool {
	return m.Kind == ""
}

// Value implements the driver.Valuer interface.
func (m TransactionMetadata) Value() (driver.Value, error) {
	if m.IsZero() {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface.
func (m *TransactionMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = TransactionMetadata{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("transaction metadata must be jsonb bytes")
	}
	var decoded TransactionMetadata
	if err := json.Unmarshal(bytes, &decoded); err != nil {
		return err
	}
	switch decoded.Kind {
	case "", MetadataKindGateway, MetadataKindAdjustment:
	default:
		return errors.New("unknown transaction metadata kind: " + decoded.Kind)
	}
	*m = decoded
	return nil
}

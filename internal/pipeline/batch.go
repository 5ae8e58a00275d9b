package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// DecodeBatch converts a parsed-batch JSON document into a StatementBatch.
// Expected top-level shape:
//
//	{
//	  "id": "...",                 // optional, generated when absent
//	  "user_id": "...",            // required
//	  "created_at": "2024-01-31T...Z", // optional RFC 3339
//	  "transactions": [ { ... }, ... ] // required, may be empty
//	}
//
// Field validation mirrors what the upstream parser promises; anything the
// merge engine itself enforces (debit/credit exclusivity, fingerprint
// validity) is left to the engine so both entry points reject it the same
// way.
func DecodeBatch(raw []byte) (*domain.StatementBatch, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("DecodeBatch: invalid JSON: %w", err)
	}

	userID, err := getStringField(doc, "user_id", true)
	if err != nil {
		return nil, fmt.Errorf("DecodeBatch: %w", err)
	}

	batchID, err := getStringField(doc, "id", false)
	if err != nil {
		return nil, fmt.Errorf("DecodeBatch: %w", err)
	}
	if batchID == "" {
		batchID = uuid.NewString()
	}

	createdAt := time.Now().UTC()
	if createdStr, err := getOptionalStringField(doc, "created_at"); err != nil {
		return nil, fmt.Errorf("DecodeBatch: %w", err)
	} else if createdStr != nil {
		parsed, err := time.Parse(time.RFC3339, *createdStr)
		if err != nil {
			return nil, fmt.Errorf("DecodeBatch: invalid created_at %q: %w", *createdStr, err)
		}
		createdAt = parsed
	}

	txAny, ok := doc["transactions"]
	if !ok {
		return nil, fmt.Errorf("DecodeBatch: missing 'transactions' key")
	}
	txSlice, ok := txAny.([]interface{})
	if !ok {
		return nil, fmt.Errorf("DecodeBatch: 'transactions' is %T, want array", txAny)
	}

	txs := make([]*domain.Transaction, 0, len(txSlice))
	for i, item := range txSlice {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("DecodeBatch: transaction %d is %T, want object", i, item)
		}
		tx, err := decodeTransaction(obj)
		if err != nil {
			return nil, fmt.Errorf("DecodeBatch: transaction %d: %w", i, err)
		}
		txs = append(txs, tx)
	}

	return &domain.StatementBatch{
		ID:           batchID,
		UserID:       userID,
		Transactions: txs,
		CreatedAt:    createdAt,
	}, nil
}

func decodeTransaction(obj map[string]interface{}) (*domain.Transaction, error) {
	dateStr, err := getStringField(obj, "date", true)
	if err != nil {
		return nil, err
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}

	narration, err := getStringField(obj, "narration", true)
	if err != nil {
		return nil, err
	}

	debit, err := getFloat64Field(obj, "debit_amount", false)
	if err != nil {
		return nil, err
	}
	credit, err := getFloat64Field(obj, "credit_amount", false)
	if err != nil {
		return nil, err
	}
	closing, err := getFloat64Field(obj, "closing_balance", true)
	if err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		Date:           date,
		Narration:      narration,
		DebitAmount:    debit,
		CreditAmount:   credit,
		ClosingBalance: closing,
	}

	if valueDateStr, err := getOptionalStringField(obj, "value_date"); err != nil {
		return nil, err
	} else if valueDateStr != nil {
		valueDate, err := time.Parse("2006-01-02", *valueDateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid value_date %q: %w", *valueDateStr, err)
		}
		tx.ValueDate = valueDate
	}

	for key, dst := range map[string]*string{
		"chq_ref_number": &tx.ChqRefNumber,
		"category":       &tx.Category,
		"upi_id":         &tx.UPIID,
		"merchant":       &tx.Merchant,
	} {
		v, err := getOptionalStringField(obj, key)
		if err != nil {
			return nil, err
		}
		if v != nil {
			*dst = *v
		}
	}

	return tx, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getFloat64Field(m map[string]interface{}, key string, required bool) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int: // unlikely from encoding/json, but harmless to support
		return float64(val), nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

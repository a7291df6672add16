package model

import (
	"fmt"
	"strings"
)

// FieldError is a single schema violation on one row.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports every schema violation found on one source row. It
// is returned as a value for the caller to count; validation never aborts the
// surrounding batch.
type ValidationError struct {
	Row        int          `json:"row"`
	Violations []FieldError `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Reason))
	}
	return fmt.Sprintf("row %d invalid: %s", e.Row, strings.Join(parts, "; "))
}

// ValidateRaw checks one source row against the raw schema and builds the
// typed record. Every violation on the row is collected before it is
// rejected, so the error names all offending fields at once.
func ValidateRaw(row map[string]interface{}, idx int) (RawRecord, *ValidationError) {
	var rec RawRecord
	var violations []FieldError

	fail := func(field, reason string) {
		violations = append(violations, FieldError{Field: field, Reason: reason})
	}

	if id, ok := intField(row["user_id"]); !ok {
		fail("user_id", "required integer")
	} else if id <= 0 {
		fail("user_id", "must be greater than 0")
	} else {
		rec.UserID = &id
	}

	if s, ok := stringField(row["order_id"]); !ok || s == "" {
		fail("order_id", "required non-empty string")
	} else {
		rec.OrderID = &s
	}

	if s, ok := stringField(row["product_id"]); !ok || s == "" {
		fail("product_id", "required non-empty string")
	} else {
		rec.ProductID = &s
	}

	rec.ProductName = optionalString(row["product_name"], "product_name", fail)
	rec.Category = optionalString(row["category"], "category", fail)
	rec.Status = optionalString(row["status"], "status", fail)

	if p, ok := floatField(row["price"]); !ok {
		fail("price", "required number")
	} else if p < 0 {
		fail("price", "must not be negative")
	} else {
		rec.Price = &p
	}

	if q, ok := intField(row["quantity"]); !ok {
		fail("quantity", "required integer")
	} else if q <= 0 {
		fail("quantity", "must be greater than 0")
	} else {
		rec.Quantity = &q
	}

	if s, ok := stringField(row["order_date"]); !ok || s == "" {
		fail("order_date", "required date string")
	} else {
		rec.OrderDate = &s
	}

	if len(violations) > 0 {
		return RawRecord{}, &ValidationError{Row: idx, Violations: violations}
	}
	return rec, nil
}

func intField(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case float64:
		// integral floats only, no silent truncation
		if val == float64(int64(val)) {
			return int64(val), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func floatField(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	default:
		return 0, false
	}
}

func stringField(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func optionalString(v interface{}, field string, fail func(field, reason string)) *string {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		fail(field, "must be a string when present")
		return nil
	}
	return &s
}

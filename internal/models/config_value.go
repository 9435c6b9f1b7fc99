package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueType discriminates the ConfigValue variants of a business config row.
type ValueType string

// Business config value types.
const (
	ValueString  ValueType = "string"
	ValueInteger ValueType = "integer"
	ValueBoolean ValueType = "boolean"
	ValueDecimal ValueType = "decimal"
	ValueJSON    ValueType = "json"
	ValueImage   ValueType = "image"
)

// ConfigValue is the typed value of a business config entry.
// Exactly one variant is held per entry, selected by its ValueType.
type ConfigValue interface {
	Type() ValueType
	MarshalJSON() ([]byte, error)
}

// StringValue is a plain string config value.
type StringValue string

// IntegerValue is a 64-bit integer config value.
type IntegerValue int64

// BooleanValue is a boolean config value.
type BooleanValue bool

// DecimalValue keeps the exact decimal text as stored (e.g. "19.99").
type DecimalValue string

// JSONValue is an arbitrary JSON document.
type JSONValue json.RawMessage

// ImageValue is the URL of an uploaded image.
type ImageValue string

func (StringValue) Type() ValueType  { return ValueString }
func (IntegerValue) Type() ValueType { return ValueInteger }
func (BooleanValue) Type() ValueType { return ValueBoolean }
func (DecimalValue) Type() ValueType { return ValueDecimal }
func (JSONValue) Type() ValueType    { return ValueJSON }
func (ImageValue) Type() ValueType   { return ValueImage }

func (v StringValue) MarshalJSON() ([]byte, error)  { return json.Marshal(string(v)) }
func (v IntegerValue) MarshalJSON() ([]byte, error) { return []byte(strconv.FormatInt(int64(v), 10)), nil }
func (v BooleanValue) MarshalJSON() ([]byte, error) { return []byte(strconv.FormatBool(bool(v))), nil }
func (v ImageValue) MarshalJSON() ([]byte, error)   { return json.Marshal(string(v)) }

// MarshalJSON emits the decimal as a JSON number.
func (v DecimalValue) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseFloat(string(v), 64); err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", string(v), err)
	}
	if !json.Valid([]byte(v)) {
		return nil, fmt.Errorf("decimal %q is not a finite JSON number", string(v))
	}

	return []byte(v), nil
}

// MarshalJSON emits the stored document, or null when empty.
func (v JSONValue) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	if !json.Valid(v) {
		return nil, fmt.Errorf("invalid json config value")
	}

	return v, nil
}

// ConfigColumns mirrors the type-specific storage columns of a business config row.
// Only the column selected by the value type is consulted.
type ConfigColumns struct {
	String  *string
	Integer *int64
	Boolean *bool
	Decimal *string
	JSON    []byte
	Image   *string
}

// DecodeConfigValue resolves the single typed value of a row from its storage columns.
// A nil ConfigValue means the selected column is NULL.
func DecodeConfigValue(vt ValueType, cols ConfigColumns) (ConfigValue, error) {
	switch vt {
	case ValueString:
		if cols.String == nil {
			return nil, nil
		}
		return StringValue(*cols.String), nil
	case ValueInteger:
		if cols.Integer == nil {
			return nil, nil
		}
		return IntegerValue(*cols.Integer), nil
	case ValueBoolean:
		if cols.Boolean == nil {
			return nil, nil
		}
		return BooleanValue(*cols.Boolean), nil
	case ValueDecimal:
		if cols.Decimal == nil {
			return nil, nil
		}
		return DecimalValue(*cols.Decimal), nil
	case ValueJSON:
		if cols.JSON == nil {
			return nil, nil
		}
		return JSONValue(cols.JSON), nil
	case ValueImage:
		if cols.Image == nil {
			return nil, nil
		}
		return ImageValue(*cols.Image), nil
	default:
		return nil, fmt.Errorf("unknown config value type %q", vt)
	}
}

package models

import "fmt"

// FeatureType is the category of configuration data a build snapshots.
type FeatureType string

// Supported feature types.
const (
	FeatureBusinessConfig FeatureType = "business_config"
	FeatureLocalization   FeatureType = "localization"
	FeatureAPIMocks       FeatureType = "api_mocks"
)

// FeatureTypes lists every feature type in canonical order.
var FeatureTypes = []FeatureType{FeatureBusinessConfig, FeatureLocalization, FeatureAPIMocks}

// ParseFeatureType validates s and returns the corresponding FeatureType.
func ParseFeatureType(s string) (FeatureType, error) {
	switch FeatureType(s) {
	case FeatureBusinessConfig, FeatureLocalization, FeatureAPIMocks:
		return FeatureType(s), nil
	case "":
		return "", ErrMissingFeatureType
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFeatureType, s)
	}
}

// DisplayName returns the human-readable name used for default build names.
func (f FeatureType) DisplayName() string {
	switch f {
	case FeatureBusinessConfig:
		return "Business Configuration"
	case FeatureLocalization:
		return "Localization"
	case FeatureAPIMocks:
		return "API Mocks"
	default:
		return string(f)
	}
}

// Mode is a pointer slot naming which build is live for a purpose.
type Mode string

// Build modes.
const (
	ModePreview    Mode = "preview"
	ModeProduction Mode = "production"
)

// ParseMode validates s and returns the corresponding Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePreview, ModeProduction:
		return Mode(s), nil
	default:
		return "", ErrInvalidMode
	}
}

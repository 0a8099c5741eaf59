package survey

import (
	"fmt"
	"os"

	"property_appraisal/pkg/core/factor"
	"property_appraisal/pkg/core/utils"

	"github.com/go-playground/validator/v10"
)

// Dataset is the content of a survey fixture or export file.
type Dataset struct {
	Property Property `json:"property"`
	Surveys  []Survey `json:"surveys" validate:"unique=ID,dive"`
	// QualitativeFactors lists the factor codes shown as qualitative rows,
	// in display order.
	QualitativeFactors []Code `json:"qualitativeFactors" validate:"unique"`
}

var surveyValidate *validator.Validate

func init() {
	surveyValidate = validator.New()
	_ = surveyValidate.RegisterValidation("datatype", func(fl validator.FieldLevel) bool {
		return factor.DataType(fl.Field().String()).Valid()
	})
	_ = surveyValidate.RegisterValidation("collateral", func(fl validator.FieldLevel) bool {
		switch CollateralType(fl.Field().String()) {
		case CollateralLand, CollateralLandAndBuilding, CollateralCondo, CollateralBuilding:
			return true
		}
		return false
	})
}

// Validate checks the dataset against the closed code and type sets.
func (d *Dataset) Validate() error {
	if err := surveyValidate.Struct(d); err != nil {
		return fmt.Errorf("invalid survey dataset: %w", err)
	}
	return nil
}

// Validate checks a single survey record.
func (s *Survey) Validate() error {
	if err := surveyValidate.Struct(s); err != nil {
		return fmt.Errorf("invalid survey %q: %w", s.ID, err)
	}
	return nil
}

// Decode parses a dataset document. Strict JSON, hand-edited JSON and HJSON
// are all accepted.
func Decode(data []byte) (*Dataset, error) {
	var d Dataset
	strategy, err := utils.DecodeLenient(string(data), &d)
	if err != nil {
		return nil, fmt.Errorf("failed to decode survey dataset: %w", err)
	}
	if strategy != utils.StrategyJSON {
		fmt.Printf("[survey] dataset accepted via %s fallback\n", strategy)
	}
	for i := range d.Surveys {
		if d.Surveys[i].CollateralType == "" {
			d.Surveys[i].CollateralType = d.Property.CollateralType
		}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Load reads and decodes a dataset file.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(data)
}

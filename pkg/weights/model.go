// Package weights implements the weight-tracking resource: the record
// model, the PostgreSQL repository, and the HTTP handlers. Every
// operation is scoped to the owner identity established by the
// authorization gate; no code path reads records across owners.
package weights

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	werr "github.com/weightworks/weights-service/pkg/errors"
)

// maxCommentLength matches the comment column width in the weights table.
const maxCommentLength = 255

// maxWeight is the exclusive upper bound imposed by the numeric(5,2)
// weight column: at most three integer digits.
var maxWeight = decimal.NewFromInt(1000)

// WeightRecord is a stored weight measurement owned by a single user. It
// doubles as the upsert payload, where the caller supplies every field
// including the id.
type WeightRecord struct {
	ID         int64
	UserID     string
	RecordedAt time.Time
	Weight     decimal.Decimal
	Comment    *string

	hasWeight bool
}

// MarshalJSON encodes the record with the weight as a JSON number rather
// than the quoted string decimal.Decimal produces by default.
func (r WeightRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         int64       `json:"id"`
		UserID     string      `json:"userId"`
		RecordedAt time.Time   `json:"recordedAt"`
		Weight     json.Number `json:"weight"`
		Comment    *string     `json:"comment"`
	}{
		ID:         r.ID,
		UserID:     r.UserID,
		RecordedAt: r.RecordedAt,
		Weight:     json.Number(r.Weight.String()),
		Comment:    r.Comment,
	})
}

// UnmarshalJSON decodes an upsert payload, accepting the weight as a
// JSON number. Missing weights are tracked so Validate can report them.
func (r *WeightRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         int64       `json:"id"`
		UserID     string      `json:"userId"`
		RecordedAt *time.Time  `json:"recordedAt"`
		Weight     json.Number `json:"weight"`
		Comment    *string     `json:"comment"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.ID = raw.ID
	r.UserID = raw.UserID
	if raw.RecordedAt != nil {
		r.RecordedAt = *raw.RecordedAt
	}
	if raw.Weight != "" {
		weight, err := decimal.NewFromString(raw.Weight.String())
		if err != nil {
			return werr.Wrapf(err, werr.CodeValidation, "weights: invalid weight value %q", raw.Weight)
		}
		r.Weight = weight
		r.hasWeight = true
	}
	r.Comment = raw.Comment
	return nil
}

// Validate checks an upsert payload. All failures are VAL-category
// errors which map to a 400 response.
func (r *WeightRecord) Validate() error {
	if r.ID <= 0 {
		return werr.New(werr.CodeValidationRequired, "weights: id is required and must be positive")
	}
	if r.UserID == "" {
		return werr.New(werr.CodeValidationRequired, "weights: userId is required")
	}
	if r.RecordedAt.IsZero() {
		return werr.New(werr.CodeValidationRequired, "weights: recordedAt is required")
	}
	if !r.hasWeight {
		return werr.New(werr.CodeValidationRequired, "weights: weight is required")
	}
	if err := validateWeightValue(r.Weight); err != nil {
		return err
	}
	return validateComment(r.Comment)
}

// SaveWeight is the payload for creating a weight record. The owner is
// never part of the payload; it always comes from the verified claims of
// the request, and the measurement timestamp is assigned by the store.
type SaveWeight struct {
	Weight  decimal.Decimal
	Comment *string

	hasWeight bool
}

// UnmarshalJSON decodes the payload, accepting the weight as a JSON
// number. A missing weight is tracked so Validate can report it.
func (s *SaveWeight) UnmarshalJSON(data []byte) error {
	var raw struct {
		Weight  json.Number `json:"weight"`
		Comment *string     `json:"comment"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Weight != "" {
		weight, err := decimal.NewFromString(raw.Weight.String())
		if err != nil {
			return werr.Wrapf(err, werr.CodeValidation, "weights: invalid weight value %q", raw.Weight)
		}
		s.Weight = weight
		s.hasWeight = true
	}
	s.Comment = raw.Comment
	return nil
}

// Validate checks the payload against the column constraints of the
// weights table. All failures are VAL-category errors which map to a
// 400 response.
func (s *SaveWeight) Validate() error {
	if !s.hasWeight {
		return werr.New(werr.CodeValidationRequired, "weights: weight is required")
	}
	if err := validateWeightValue(s.Weight); err != nil {
		return err
	}
	return validateComment(s.Comment)
}

// validateWeightValue enforces the numeric(5,2) column constraints.
func validateWeightValue(weight decimal.Decimal) error {
	if weight.IsNegative() {
		return werr.New(werr.CodeValidationRange, "weights: weight must not be negative")
	}
	if weight.GreaterThanOrEqual(maxWeight) {
		return werr.Newf(werr.CodeValidationRange,
			"weights: weight must be less than %s", maxWeight)
	}
	// numeric(5,2) stores at most two fractional digits.
	if weight.Exponent() < -2 {
		return werr.New(werr.CodeValidationRange,
			"weights: weight must have at most two decimal places")
	}
	return nil
}

func validateComment(comment *string) error {
	if comment != nil && len(*comment) > maxCommentLength {
		return werr.Newf(werr.CodeValidationRange,
			"weights: comment must not exceed %d characters", maxCommentLength)
	}
	return nil
}

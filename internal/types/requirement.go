package types

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// WeightTolerance is the allowed deviation of the weight sum from 1.0
const WeightTolerance = 0.01

// Requirement is the job description candidates are ranked against
type Requirement struct {
	ID             string         `json:"id,omitempty"`
	Text           NormalizedText `json:"text"`
	RequiredSkills []string       `json:"required_skills"`
	RequiredYears  float64        `json:"required_years" validate:"gte=0"`
}

// Validate validates the Requirement using the validator.
func (r *Requirement) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Weights holds the fusion weights of the three ranking signals
type Weights struct {
	Text       float64 `json:"text" validate:"gte=0,lte=1"`
	Skill      float64 `json:"skill" validate:"gte=0,lte=1"`
	Experience float64 `json:"experience" validate:"gte=0,lte=1"`
}

// DefaultWeights returns the default signal weights (text 0.5, skills 0.35, experience 0.15)
func DefaultWeights() Weights {
	return Weights{Text: 0.5, Skill: 0.35, Experience: 0.15}
}

// Sum returns the total of the three weights
func (w Weights) Sum() float64 {
	return w.Text + w.Skill + w.Experience
}

// IsZero reports whether no weight is set
func (w Weights) IsZero() bool {
	return w.Text == 0 && w.Skill == 0 && w.Experience == 0
}

// Validate checks every weight is in [0,1] and that they sum to 1 within WeightTolerance.
func (w Weights) Validate() error {
	validate := validator.New()
	if err := validate.Struct(w); err != nil {
		return err
	}
	// Round away float noise so 0.99 and 1.01 sit inside the range
	deviation := math.Round(math.Abs(w.Sum()-1.0)*1e9) / 1e9
	if deviation > WeightTolerance {
		return &WeightSumError{Sum: w.Sum()}
	}
	return nil
}

// WeightSumError reports weights whose sum falls outside 1.0 ± WeightTolerance
type WeightSumError struct {
	Sum float64
}

func (e *WeightSumError) Error() string {
	return fmt.Sprintf("weights must sum to 1.0 ± %.2f, got %.4f", WeightTolerance, e.Sum)
}

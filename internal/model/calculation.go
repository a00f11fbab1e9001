package model

import "time"

// Calculation is a row of the `calculations` table.  Result is always the
// value of evaluating Type over Inputs; it is recomputed whenever Inputs
// change.
type Calculation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Inputs    []float64 `json:"inputs"`
	Result    float64   `json:"result"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

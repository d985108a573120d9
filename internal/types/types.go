// Package types provides common type definitions for the bond service.
package types

import (
	"encoding/json"
	"fmt"
)

// YieldsFrequency is the number of coupon payments a bond makes per year
type YieldsFrequency int

const (
	// FrequencyMonthly pays twelve times a year (the default)
	FrequencyMonthly YieldsFrequency = 12
	// FrequencyQuarterly pays four times a year
	FrequencyQuarterly YieldsFrequency = 4
	// FrequencyAnnually pays once a year
	FrequencyAnnually YieldsFrequency = 1
)

// DefaultYieldsFrequency is used when a bond is created without a frequency
const DefaultYieldsFrequency = FrequencyMonthly

// Valid reports whether f is one of the supported frequencies
func (f YieldsFrequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually:
		return true
	}
	return false
}

// Label returns the human readable name of the frequency
func (f YieldsFrequency) Label() string {
	switch f {
	case FrequencyMonthly:
		return "Monthly"
	case FrequencyQuarterly:
		return "Quarterly"
	case FrequencyAnnually:
		return "Annually"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// UnmarshalJSON rejects frequencies outside the supported set
func (f *YieldsFrequency) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("yields_frequency must be an integer")
	}
	v := YieldsFrequency(n)
	if !v.Valid() {
		return fmt.Errorf("\"%d\" is not a valid choice", n)
	}
	*f = v
	return nil
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// ErrorResponse is the envelope every failed request is answered with
type ErrorResponse struct {
	Error *ServiceError `json:"error"`
}

package models

import (
	"bytes"
	"fmt"
	"time"
)

// Availability is the tri-state purchase signal of a target. The zero
// value is AvailabilityUnknown, which is never the same as Unavailable.
type Availability int8

const (
	AvailabilityUnknown Availability = iota
	Available
	Unavailable
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state as true, false or null.
func (a Availability) MarshalJSON() ([]byte, error) {
	switch a {
	case Available:
		return []byte("true"), nil
	case Unavailable:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false or null.
func (a *Availability) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*a = Available
	case "false":
		*a = Unavailable
	case "null":
		*a = AvailabilityUnknown
	default:
		return fmt.Errorf("models: invalid availability %s", data)
	}
	return nil
}

// ExtractionResult is the normalized outcome for one target in one run.
// Success is true exactly when Price is non-nil.
type ExtractionResult struct {
	Name      string       `json:"name"`
	URL       string       `json:"url"`
	Price     *int64       `json:"price"`
	Available Availability `json:"available"`
	Success   bool         `json:"success"`

	// Failure holds the error code when the target ended in failure.
	Failure string `json:"failure,omitempty"`
}

// NewResult builds a result keeping Success consistent with Price.
func NewResult(t Target, price *int64, avail Availability) ExtractionResult {
	return ExtractionResult{
		Name:      t.Name,
		URL:       t.URL,
		Price:     price,
		Available: avail,
		Success:   price != nil,
	}
}

// FailedResult is the fully-null result of a target that could not be processed.
func FailedResult(t Target, code string) ExtractionResult {
	return ExtractionResult{Name: t.Name, URL: t.URL, Failure: code}
}

// PriceValue returns the price or 0 when unknown.
func (r ExtractionResult) PriceValue() int64 {
	if r.Price == nil {
		return 0
	}
	return *r.Price
}

// Snapshot is one run's full set of results. It is the only durable
// contract between runs.
type Snapshot struct {
	Timestamp    time.Time          `json:"timestamp"`
	Results      []ExtractionResult `json:"results"`
	SuccessCount int                `json:"success_count"`
}

// NewSnapshot builds a snapshot and computes its success count.
func NewSnapshot(at time.Time, results []ExtractionResult) Snapshot {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return Snapshot{Timestamp: at.UTC(), Results: results, SuccessCount: n}
}

// Lookup returns the result for a target identity.
func (s Snapshot) Lookup(name string) (ExtractionResult, bool) {
	for _, r := range s.Results {
		if r.Name == name {
			return r, true
		}
	}
	return ExtractionResult{}, false
}

// Classification is the kind of change detected for a target.
type Classification string

const (
	ChangeDrop      Classification = "drop"
	ChangeRise      Classification = "rise"
	ChangeUnchanged Classification = "unchanged"
	ChangeNew       Classification = "new"
	ChangeMissing   Classification = "missing"

	// ChangeNoData marks a target without a price in either run.
	ChangeNoData Classification = "no_data"
)

// ChangeRecord describes how one target's price moved between two runs.
// Delta is current minus previous; Savings and Increase hold its magnitude
// for drops and rises respectively.
type ChangeRecord struct {
	Name           string         `json:"name"`
	PreviousPrice  *int64         `json:"previous_price"`
	CurrentPrice   *int64         `json:"current_price"`
	Delta          int64          `json:"delta"`
	Savings        int64          `json:"savings,omitempty"`
	Increase       int64          `json:"increase,omitempty"`
	Classification Classification `json:"classification"`
	Available      Availability   `json:"available"`
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

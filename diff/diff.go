// Package diff compares a run's snapshot against the previous one and ranks
// the current prices for reporting.
package diff

import (
	"sort"

	"github.com/use-agent/pricewatch/models"
)

// Result is the outcome of comparing two snapshots.
type Result struct {
	// FirstRun is set when there was no previous snapshot.
	FirstRun bool `json:"first_run"`

	// HasDrops reports whether any target got cheaper.
	HasDrops bool `json:"has_drops"`

	// Changes holds only drops and rises, in current snapshot order.
	Changes []models.ChangeRecord `json:"changes"`

	// Statuses classifies every current target plus targets that only
	// exist in the previous snapshot, in that order. Empty on a first run.
	Statuses []models.ChangeRecord `json:"statuses"`
}

// Drops returns the drop records of r in order.
func (r Result) Drops() []models.ChangeRecord { return r.filter(models.ChangeDrop) }

// Rises returns the rise records of r in order.
func (r Result) Rises() []models.ChangeRecord { return r.filter(models.ChangeRise) }

func (r Result) filter(c models.Classification) []models.ChangeRecord {
	var out []models.ChangeRecord
	for _, ch := range r.Changes {
		if ch.Classification == c {
			out = append(out, ch)
		}
	}
	return out
}

// Compare joins current and previous by target name. previous is read only;
// nil means there is no prior run. The output depends only on the inputs.
func Compare(current models.Snapshot, previous *models.Snapshot) Result {
	if previous == nil {
		return Result{FirstRun: true, Changes: []models.ChangeRecord{}}
	}

	prior := make(map[string]models.ExtractionResult, len(previous.Results))
	for _, r := range previous.Results {
		if _, dup := prior[r.Name]; !dup {
			prior[r.Name] = r
		}
	}

	res := Result{Changes: []models.ChangeRecord{}}
	seen := make(map[string]struct{}, len(current.Results))
	for _, cur := range current.Results {
		seen[cur.Name] = struct{}{}
		prev, ok := prior[cur.Name]

		rec := models.ChangeRecord{
			Name:          cur.Name,
			CurrentPrice:  copyPrice(cur.Price),
			PreviousPrice: nil,
			Available:     cur.Available,
		}
		if ok {
			rec.PreviousPrice = copyPrice(prev.Price)
		}

		switch {
		case rec.CurrentPrice != nil && rec.PreviousPrice != nil:
			rec.Delta = *rec.CurrentPrice - *rec.PreviousPrice
			switch {
			case rec.Delta < 0:
				rec.Classification = models.ChangeDrop
				rec.Savings = -rec.Delta
				res.HasDrops = true
			case rec.Delta > 0:
				rec.Classification = models.ChangeRise
				rec.Increase = rec.Delta
			default:
				rec.Classification = models.ChangeUnchanged
			}
		case rec.CurrentPrice != nil:
			rec.Classification = models.ChangeNew
		case rec.PreviousPrice != nil:
			rec.Classification = models.ChangeMissing
		default:
			rec.Classification = models.ChangeNoData
		}

		if rec.Classification == models.ChangeDrop || rec.Classification == models.ChangeRise {
			res.Changes = append(res.Changes, rec)
		}
		res.Statuses = append(res.Statuses, rec)
	}

	// Targets dropped from the registry since the previous run.
	for _, prev := range previous.Results {
		if _, ok := seen[prev.Name]; ok {
			continue
		}
		seen[prev.Name] = struct{}{}
		if prev.Price == nil {
			continue
		}
		res.Statuses = append(res.Statuses, models.ChangeRecord{
			Name:           prev.Name,
			PreviousPrice:  copyPrice(prev.Price),
			Classification: models.ChangeMissing,
		})
	}
	return res
}

func copyPrice(p *int64) *int64 {
	if p == nil {
		return nil
	}
	return models.Int64(*p)
}

// Ranking partitions the successful results of a run for reporting.
type Ranking struct {
	// TopK is WithStock's head, backfilled from WithoutStock.
	TopK []models.ExtractionResult

	// WithStock are priced results that are known to be available.
	WithStock []models.ExtractionResult

	// WithoutStock are priced results whose availability is false or unknown.
	WithoutStock []models.ExtractionResult

	// All is every priced result, ascending by price.
	All []models.ExtractionResult

	// NoData lists results without a usable price, in run order.
	NoData []models.ExtractionResult
}

// Rank sorts priced results ascending and picks the top k, preferring
// results with stock. Equal prices keep run order.
func Rank(results []models.ExtractionResult, k int) Ranking {
	var rk Ranking
	for _, r := range results {
		if r.Price == nil || *r.Price <= 0 {
			rk.NoData = append(rk.NoData, r)
			continue
		}
		rk.All = append(rk.All, r)
		if r.Available == models.Available {
			rk.WithStock = append(rk.WithStock, r)
		} else {
			rk.WithoutStock = append(rk.WithoutStock, r)
		}
	}
	byPrice(rk.All)
	byPrice(rk.WithStock)
	byPrice(rk.WithoutStock)

	if k < 0 {
		k = 0
	}
	top := make([]models.ExtractionResult, 0, k)
	for _, r := range rk.WithStock {
		if len(top) == k {
			break
		}
		top = append(top, r)
	}
	for _, r := range rk.WithoutStock {
		if len(top) == k {
			break
		}
		top = append(top, r)
	}
	rk.TopK = top
	return rk
}

func byPrice(rs []models.ExtractionResult) {
	sort.SliceStable(rs, func(i, j int) bool { return *rs[i].Price < *rs[j].Price })
}

package diff

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricewatch/models"
)

func result(name string, price int64, avail models.Availability) models.ExtractionResult {
	r := models.ExtractionResult{Name: name, URL: "https://" + name, Available: avail}
	if price > 0 {
		r.Price = models.Int64(price)
		r.Success = true
	}
	return r
}

func snapshot(results ...models.ExtractionResult) models.Snapshot {
	return models.NewSnapshot(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC), results)
}

func prices(rs []models.ExtractionResult) []int64 {
	out := make([]int64, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.PriceValue())
	}
	return out
}

func TestCompare_Drop(t *testing.T) {
	prev := snapshot(result("Winpy", 210000, models.Available))
	cur := snapshot(result("Winpy", 200000, models.Available))

	res := Compare(cur, &prev)

	require.Len(t, res.Changes, 1)
	ch := res.Changes[0]
	assert.True(t, res.HasDrops)
	assert.False(t, res.FirstRun)
	assert.Equal(t, models.ChangeDrop, ch.Classification)
	assert.Equal(t, int64(10000), ch.Savings)
	assert.Equal(t, int64(-10000), ch.Delta)
	assert.Equal(t, int64(210000), *ch.PreviousPrice)
	assert.Equal(t, int64(200000), *ch.CurrentPrice)
	assert.Equal(t, models.Available, ch.Available)
}

func TestCompare_Rise(t *testing.T) {
	prev := snapshot(result("MyShop", 189990, models.Available))
	cur := snapshot(result("MyShop", 199990, models.Unavailable))

	res := Compare(cur, &prev)

	require.Len(t, res.Changes, 1)
	assert.False(t, res.HasDrops)
	assert.Equal(t, models.ChangeRise, res.Changes[0].Classification)
	assert.Equal(t, int64(10000), res.Changes[0].Increase)
}

func TestCompare_EqualPricesAreNotChanges(t *testing.T) {
	prev := snapshot(result("Tecnomas", 199990, models.Available))
	cur := snapshot(result("Tecnomas", 199990, models.Unavailable))

	res := Compare(cur, &prev)

	assert.Empty(t, res.Changes)
	assert.False(t, res.HasDrops)
	require.Len(t, res.Statuses, 1)
	assert.Equal(t, models.ChangeUnchanged, res.Statuses[0].Classification)
}

func TestCompare_FirstRun(t *testing.T) {
	cur := snapshot(
		result("Winpy", 200000, models.Available),
		result("MyShop", 150000, models.Available),
	)

	res := Compare(cur, nil)

	assert.True(t, res.FirstRun)
	assert.False(t, res.HasDrops)
	assert.Empty(t, res.Changes)
	assert.Empty(t, res.Statuses)
}

func TestCompare_NewMissingAndRemoved(t *testing.T) {
	prev := snapshot(
		result("Winpy", 200000, models.Available),
		result("Trulu", 0, models.AvailabilityUnknown),
		result("Retired", 180000, models.Available),
	)
	cur := snapshot(
		result("Winpy", 0, models.AvailabilityUnknown),
		result("Trulu", 189990, models.Available),
		result("Central Gamer", 0, models.AvailabilityUnknown),
	)

	res := Compare(cur, &prev)

	assert.Empty(t, res.Changes)
	require.Len(t, res.Statuses, 4)
	assert.Equal(t, "Winpy", res.Statuses[0].Name)
	assert.Equal(t, models.ChangeMissing, res.Statuses[0].Classification)
	assert.Equal(t, models.ChangeNew, res.Statuses[1].Classification)
	assert.Equal(t, models.ChangeNoData, res.Statuses[2].Classification)
	assert.Equal(t, "Retired", res.Statuses[3].Name)
	assert.Equal(t, models.ChangeMissing, res.Statuses[3].Classification)
}

func TestCompare_NoPriceInEitherRunIsNoData(t *testing.T) {
	prev := snapshot(
		result("PC Factory", 0, models.AvailabilityUnknown),
		result("SP Digital", 205000, models.Available),
	)
	cur := snapshot(
		result("PC Factory", 0, models.Unavailable),
		result("SP Digital", 205000, models.Available),
	)

	res := Compare(cur, &prev)

	require.Len(t, res.Statuses, 2)
	assert.Equal(t, models.ChangeNoData, res.Statuses[0].Classification)
	assert.Equal(t, models.ChangeUnchanged, res.Statuses[1].Classification)
	assert.Empty(t, res.Changes)
}

func TestCompare_PreservesCurrentOrder(t *testing.T) {
	prev := snapshot(
		result("A", 100000, models.Available),
		result("B", 100000, models.Available),
		result("C", 100000, models.Available),
	)
	cur := snapshot(
		result("C", 90000, models.Available),
		result("A", 110000, models.Available),
		result("B", 95000, models.Available),
	)

	res := Compare(cur, &prev)

	require.Len(t, res.Changes, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{res.Changes[0].Name, res.Changes[1].Name, res.Changes[2].Name})
	assert.Len(t, res.Drops(), 2)
	assert.Len(t, res.Rises(), 1)
}

func TestCompare_DoesNotMutatePrevious(t *testing.T) {
	prev := snapshot(result("Winpy", 210000, models.Available))
	before, err := json.Marshal(prev)
	require.NoError(t, err)

	res := Compare(snapshot(result("Winpy", 200000, models.Available)), &prev)
	*res.Changes[0].PreviousPrice = 1

	after, err := json.Marshal(prev)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestCompare_Idempotent(t *testing.T) {
	prev := snapshot(
		result("Winpy", 210000, models.Available),
		result("MyShop", 180000, models.Unavailable),
	)
	cur := snapshot(
		result("Winpy", 200000, models.Available),
		result("MyShop", 185000, models.AvailabilityUnknown),
	)

	first, err := json.Marshal(Compare(cur, &prev).Changes)
	require.NoError(t, err)
	second, err := json.Marshal(Compare(cur, &prev).Changes)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRank_Backfill(t *testing.T) {
	results := []models.ExtractionResult{
		result("no-stock-200", 200000, models.Unavailable),
		result("stock-195", 195000, models.Available),
		result("no-stock-170", 170000, models.AvailabilityUnknown),
		result("stock-180", 180000, models.Available),
		result("no-stock-210", 210000, models.Unavailable),
	}

	rk := Rank(results, 3)

	assert.Equal(t, []int64{180000, 195000, 170000}, prices(rk.TopK))
	assert.Equal(t, []int64{180000, 195000}, prices(rk.WithStock))
	assert.Equal(t, []int64{170000, 200000, 210000}, prices(rk.WithoutStock))
	assert.Equal(t, []int64{170000, 180000, 195000, 200000, 210000}, prices(rk.All))
	assert.Empty(t, rk.NoData)
}

func TestRank_StockFillsTopK(t *testing.T) {
	results := []models.ExtractionResult{
		result("a", 150000, models.Unavailable),
		result("b", 210000, models.Available),
		result("c", 190000, models.Available),
		result("d", 200000, models.Available),
		result("e", 205000, models.Available),
	}

	rk := Rank(results, 3)
	assert.Equal(t, []int64{190000, 200000, 205000}, prices(rk.TopK))
}

func TestRank_NoDataListedSeparately(t *testing.T) {
	failed := models.ExtractionResult{Name: "SP Digital", Price: models.Int64(0)}
	results := []models.ExtractionResult{
		result("Winpy", 200000, models.Available),
		result("Trulu", 0, models.AvailabilityUnknown),
		failed,
	}

	rk := Rank(results, 3)

	assert.Equal(t, []int64{200000}, prices(rk.TopK))
	require.Len(t, rk.NoData, 2)
	assert.Equal(t, "Trulu", rk.NoData[0].Name)
	assert.Equal(t, "SP Digital", rk.NoData[1].Name)
}

func TestRank_StableForEqualPrices(t *testing.T) {
	results := []models.ExtractionResult{
		result("first", 199990, models.Available),
		result("second", 199990, models.Available),
	}
	rk := Rank(results, 1)
	require.Len(t, rk.TopK, 1)
	assert.Equal(t, "first", rk.TopK[0].Name)
}

func TestRank_DoesNotReorderInput(t *testing.T) {
	results := []models.ExtractionResult{
		result("b", 200000, models.Available),
		result("a", 100000, models.Available),
	}
	Rank(results, 2)
	assert.Equal(t, "b", results[0].Name)
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricewatch/models"
)

func TestDelay_IsLinear(t *testing.T) {
	step := 2 * time.Second
	assert.Equal(t, time.Duration(0), Delay(0, step))
	assert.Equal(t, 2*time.Second, Delay(1, step))
	assert.Equal(t, 4*time.Second, Delay(2, step))
	assert.Equal(t, 6*time.Second, Delay(3, step))
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int
	err := Do(context.Background(), Config{
		Attempts: 3,
		Backoff:  time.Millisecond,
		OnRetry:  func(attempt int, _ error) { retried = append(retried, attempt) },
	}, func(context.Context) error {
		calls++
		if calls < 3 {
			return models.NewScrapeError(models.ErrCodeTimeout, "slow", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_StopsAtAttemptBound(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{Attempts: 2, Backoff: time.Millisecond}, func(context.Context) error {
		calls++
		return models.NewScrapeError(models.ErrCodeNavigation, "net::ERR_CONNECTION_RESET", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, models.ErrCodeNavigation, models.CodeOf(err))
}

func TestDo_DoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{Attempts: 5, Backoff: time.Millisecond}, func(context.Context) error {
		calls++
		return models.NewScrapeError(models.ErrCodeChallenge, "still challenged", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Config{Attempts: 5, Backoff: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return models.NewScrapeError(models.ErrCodeTimeout, "canceled", context.Canceled)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ReturnsValue(t *testing.T) {
	v, err := DoVal(context.Background(), Config{Attempts: 1}, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDoVal_CustomShouldRetry(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := DoVal(context.Background(), Config{
		Attempts:    3,
		Backoff:     time.Millisecond,
		ShouldRetry: func(err error) bool { return errors.Is(err, boom) },
	}, func(context.Context) (string, error) {
		calls++
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

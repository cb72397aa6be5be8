package extract

import (
	"strconv"
	"strings"

	"github.com/use-agent/pricewatch/models"
)

// ParsePrice strips every non-digit character from text and parses the
// remainder as an integer. Text without digits, or whose digits overflow an
// int64, is a PARSE_FAILURE. A zero amount is also rejected: prices are
// positive.
func ParsePrice(text string) (int64, error) {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	digits := sb.String()
	if digits == "" {
		return 0, models.NewScrapeError(models.ErrCodeParse, "no digits in "+strconv.Quote(text), nil)
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, models.NewScrapeError(models.ErrCodeParse, "not a number: "+strconv.Quote(text), err)
	}
	if v <= 0 {
		return 0, models.NewScrapeError(models.ErrCodeParse, "non-positive amount "+strconv.Quote(text), nil)
	}
	return v, nil
}

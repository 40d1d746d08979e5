package api

import (
	"strconv"

	"github.com/auctioncompare/api/internal/compare"
	"github.com/gin-gonic/gin"
)

// writeError writes spec.md §6.3's error envelope. retryAfterSeconds, when
// positive, is also set as the Retry-After header (RATE_LIMITED contract).
func writeError(c *gin.Context, status int, code, message string, retryAfterSeconds *int) {
	if retryAfterSeconds != nil && *retryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(*retryAfterSeconds))
	}
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// writeCompareError maps an orchestrator *compare.Error to the HTTP status
// and error code table in spec.md §6.3/§7.
func writeCompareError(c *gin.Context, err error) {
	compareErr, ok := err.(*compare.Error)
	if !ok {
		writeError(c, 500, "API_ERROR", err.Error(), nil)
		return
	}

	status := 500
	switch compareErr.Code {
	case compare.ErrInvalidRequest:
		status = 400
	case compare.ErrRateLimited:
		status = 429
	case compare.ErrNoResults:
		status = 404
	case compare.ErrQuotaExceeded, compare.ErrFreeExhausted:
		status = 402
	case compare.ErrAPIError:
		status = 500
	}

	var retry *int
	if compareErr.RetryAfterSeconds > 0 {
		retry = &compareErr.RetryAfterSeconds
	}

	body := gin.H{
		"error": gin.H{
			"code":    string(compareErr.Code),
			"message": compareErr.Message,
		},
	}
	if compareErr.Usage != nil {
		body["error"].(gin.H)["usage"] = gin.H{
			"balance":       compareErr.Usage.Balance,
			"freeAvailable": compareErr.Usage.FreeAvailable,
		}
	}
	if retry != nil {
		c.Header("Retry-After", strconv.Itoa(*retry))
	}
	c.JSON(status, body)
}

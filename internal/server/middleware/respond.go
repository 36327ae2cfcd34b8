package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/warehouse/pkg/api"
)

// WriteError отправляет JSON ошибку в формате api.ErrorResponse
func WriteError(w http.ResponseWriter, status int, resp api.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	if resp.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(resp.RetryAfterSeconds, 10))
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// RetryAfterSeconds округляет ожидание вверх до целых секунд (минимум 1)
func RetryAfterSeconds(d time.Duration) int64 {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

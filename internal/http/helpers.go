package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"smartsave/internal/core"
)

func errInvalidQuery(name string) error {
	return fmt.Errorf("%w: invalid %s parameter", core.ErrInvalidArgument, name)
}

// queryInt reads an integer query parameter; ok is false when it is absent.
func queryInt(r *http.Request, name string) (v int, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.Atoi(raw)
	if err != nil {
		return 0, false, errInvalidQuery(name)
	}
	return v, true, nil
}

// parseYearMonth reads year and month. Both must be given together; ok is
// false when neither is. Range checks are left to the calculator.
func parseYearMonth(r *http.Request) (year, month int, ok bool, err error) {
	year, hasYear, err := queryInt(r, "year")
	if err != nil {
		return 0, 0, false, err
	}
	month, hasMonth, err := queryInt(r, "month")
	if err != nil {
		return 0, 0, false, err
	}
	if hasYear != hasMonth {
		return 0, 0, false, fmt.Errorf("%w: year and month must be given together", core.ErrInvalidArgument)
	}
	return year, month, hasYear, nil
}

// requireYearMonth is parseYearMonth for endpoints with no rolling default.
func requireYearMonth(r *http.Request) (year, month int, err error) {
	year, month, ok, err := parseYearMonth(r)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, fmt.Errorf("%w: year and month are required", core.ErrInvalidArgument)
	}
	return year, month, nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func errMissingField(name string) error {
	return fmt.Errorf("%w: %s is required", core.ErrInvalidArgument, name)
}

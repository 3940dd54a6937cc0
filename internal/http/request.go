package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"smartsave/internal/core"
)

const maxBodyBytes = 1 << 20

// amount accepts both JSON numbers and strings, with a dot or comma separator.
type amount struct {
	decimal.Decimal
	Set bool
}

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	b = bytes.Trim(b, `"`)
	d, err := core.ParseAmount(string(b))
	if err != nil {
		return err
	}
	a.Decimal, a.Set = d, true
	return nil
}

func (a amount) nullable() decimal.NullDecimal {
	if !a.Set {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(a.Decimal)
}

type recordRequest struct {
	Description       string `json:"description"`
	Amount            amount `json:"amount"`
	Type              string `json:"type"`
	SavingsCalculated amount `json:"savings_calculated"`
	Timestamp         int64  `json:"timestamp"`
	Currency          string `json:"currency"`
}

type withdrawRequest struct {
	Amount      amount `json:"amount"`
	Description string `json:"description"`
}

type depositRequest struct {
	Amount   amount `json:"amount"`
	Currency string `json:"currency"`
}

type profileRequest struct {
	SavingsPercentage amount `json:"savings_percentage"`
}

// decodeJSON reads a single JSON object, rejecting unknown fields. Decode
// failures are reported as invalid arguments.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrInvalidArgument) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", core.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: malformed JSON: %v", core.ErrInvalidArgument, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must hold a single JSON object", core.ErrInvalidArgument)
	}
	return nil
}

package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	errNull        = errors.New("null value")
	errNotFinite   = errors.New("not a finite number")
	errUnsupported = errors.New("unsupported type")
)

// ParseRequest coerces the generation parameters found in params, filling
// absent keys from the given defaults. Any value that cannot be read as an
// integer fails the whole request with ErrInvalidParameters.
func ParseRequest(params map[string]any, defaults Request) (Request, error) {
	req := defaults
	fields := []struct {
		name string
		dst  *int
	}{
		{ParamNumFiles, &req.NumFiles},
		{ParamLinesPerFile, &req.LinesPerFile},
		{ParamConcurrency, &req.Concurrency},
	}
	for _, f := range fields {
		raw, ok := params[f.name]
		if !ok {
			continue
		}
		v, err := coerceInt(raw)
		if err != nil {
			return Request{}, NewErrInvalidParam(f.name, err)
		}
		*f.dst = v
	}
	return req, nil
}

// coerceInt accepts JSON numbers (truncated toward zero), integer strings and
// booleans.
func coerceInt(raw any) (int, error) {
	switch v := raw.(type) {
	case nil:
		return 0, errNull
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, errNotFinite
		}
		return int(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("parse number: %w", err)
		}
		return coerceInt(f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("parse int: %w", err)
		}
		return i, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %T", errUnsupported, raw)
	}
}

package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/warden/pkg/apperr"
)

// MaxBodyBytes caps JSON request bodies
const MaxBodyBytes = 1 << 20

// ParseJSON decodes the request body into dest. Unknown fields are rejected.
func ParseJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("Request body is required")
		}
		return apperr.Validation("Invalid JSON: " + err.Error())
	}
	return nil
}

// PathParam returns a required path variable
func PathParam(r *http.Request, key string) (string, error) {
	val := mux.Vars(r)[key]
	if val == "" {
		return "", apperr.Validationf("missing path parameter: %s", key)
	}
	return val, nil
}

// QueryInt parses an optional integer query parameter, returning 0 when absent
func QueryInt(r *http.Request, key string) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return 0, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, apperr.Validationf("invalid integer for %s: %s", key, str)
	}
	return val, nil
}

/*
Package req provides helper functions for HTTP request parsing and data binding.

It encapsulates JSON body decoding with strict field checking and size limits,
so handlers only deal with already-validated input structures.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"veilchat/internal/pkg/errs"
)

// MaxBodyBytes defines the maximum allowed size (1 MB) for a JSON request body.
// All API payloads are small; anything larger is rejected outright.
const MaxBodyBytes int64 = 1 << 20

// BindJSON binds the JSON request body to the destination struct dst.
// Unknown fields and trailing content are rejected.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(nil, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

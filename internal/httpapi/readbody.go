// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
)

// readJSONBody enforces the payload limit in two layers: it rejects
// early on a declared Content-Length that already exceeds limit (413
// without touching the body), then wraps the body in
// http.MaxBytesReader so a client that lies about Content-Length (or
// omits it) still gets cut off mid-stream. A *http.MaxBytesError from
// the decoder is reported as payload_too_large; any other decode
// failure is invalid_json.
func readJSONBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) ErrorCode {
	if r.ContentLength > limit {
		return ErrPayloadTooLarge
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return ErrPayloadTooLarge
		}
		return ErrInvalidJSON
	}
	return ""
}

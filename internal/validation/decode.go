package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/abkawan/peachtree-bank/internal/apperrors"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads a JSON object from the request body into dst and validates it.
// Unknown fields are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperrors.Validation("Could not read request body", nil)
	}
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return apperrors.Validation(MsgNoJSON, nil)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperrors.Validation(MsgRequestInvalid, map[string][]string{
				typeErr.Field: {"Invalid type, expected " + typeErr.Type.String()},
			})
		}
		return apperrors.Validation("Invalid JSON payload", map[string][]string{
			"body": {err.Error()},
		})
	}

	return Validate(dst)
}

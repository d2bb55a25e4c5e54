// Package response writes JSON, plain text and structured error bodies for
// the relay's HTTP endpoints.
//
//	response.JSON(w, map[string]any{"status": "ok"})
//	response.Error(w, response.ErrUnauthorized.WithMessage("token expired"))
package response

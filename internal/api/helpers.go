package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type ErrorResponse struct {
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

// SendErr logs originErr and writes msgToSend as a JSON error. Client errors
// carry the cause in the description field.
func SendErr(ctx context.Context, w http.ResponseWriter, code int, originErr error, msgToSend string) {
	resp := ErrorResponse{Message: msgToSend}

	if originErr != nil {
		if code < http.StatusInternalServerError {
			slog.WarnContext(ctx, "api error", "status", code, "error", originErr.Error())
			resp.Description = originErr.Error()
		} else {
			slog.ErrorContext(ctx, "api error", "status", code, "error", originErr.Error())
		}
	}

	SendJSON(ctx, w, code, resp)
}

func SendJSON(ctx context.Context, w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.ErrorContext(ctx, "encode response", "error", err)
	}
}

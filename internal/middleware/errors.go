package middleware

import (
	"encoding/json"
	"net/http"
)

// Messages returned by middleware. They match the bodies written by the
// handlers so that clients see one error shape.
const (
	MsgAccessDenied    = "Access denied"
	MsgTooManyRequests = "Too many requests from this IP, please try again after 10 minutes"
	MsgBodyTooLarge    = "Request body too large"
	MsgInternalError   = "Internal Server Error"
)

// writeError writes a {"error": message} JSON body with the given status.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

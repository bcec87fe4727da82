package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/upi-sandbox/internal"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// maxLoggedBody caps the bytes of a request or response body kept for logging.
const maxLoggedBody = 4 << 10

// sensitiveFields are field names that should be filtered from logs
var sensitiveFields = []string{
	"upi_pin",
	"mpin",
	"account_number",
	"ifsc",
	"token",
	"authorization",
	"secret",
	"api_key",
	"credential",
}

// LoggingMiddleware logs every request at debug and its response at a level
// picked from the status code. Both entries carry the trace id; the response
// entry also names the order and payment the exchange touched.
func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := internal.TraceIDFromContext(r.Context())
			if traceID == "" {
				traceID = chiMiddleware.GetReqID(r.Context())
			}

			reqBody := readRequestBody(r)
			logger.Debug("incoming request",
				"trace_id", traceID,
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"headers", filterSensitiveHeaders(r.Header),
				"body", filterSensitiveBody(reqBody),
			)

			rec := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			ids := exchangeIDs{}
			ids.fromBody(reqBody)
			ids.fromBody(rec.body.Bytes())
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if id := rctx.URLParam("id"); id != "" {
					ids.paymentID = id
				}
			}

			status := rec.status()
			attrs := []any{
				"trace_id", traceID,
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", rec.size,
			}
			if ids.orderID != "" {
				attrs = append(attrs, "order_id", ids.orderID)
			}
			if ids.paymentID != "" {
				attrs = append(attrs, "payment_id", ids.paymentID)
			}
			if status >= http.StatusBadRequest {
				attrs = append(attrs, "body", filterSensitiveBody(rec.body.Bytes()))
			}

			logger.Log(r.Context(), levelForStatus(status), "response", attrs...)
		})
	}
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// readRequestBody returns the body and puts an unread copy back on r.
func readRequestBody(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) > maxLoggedBody {
		return body[:maxLoggedBody]
	}
	return body
}

// responseRecorder keeps the status and the first maxLoggedBody bytes written.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	size       int
	body       bytes.Buffer
}

func (rw *responseRecorder) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	if room := maxLoggedBody - rw.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		rw.body.Write(b[:room])
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func (rw *responseRecorder) status() int {
	if rw.statusCode == 0 {
		return http.StatusOK
	}
	return rw.statusCode
}

// exchangeIDs are the order and payment ids found in an exchange. Order ids
// carry the "order_" prefix and payment ids the "pay_" prefix.
type exchangeIDs struct {
	orderID   string
	paymentID string
}

func (ids *exchangeIDs) fromBody(body []byte) {
	var doc map[string]interface{}
	if len(body) == 0 || json.Unmarshal(body, &doc) != nil {
		return
	}
	ids.fromObject(doc)
	// webhook notifications nest the entity under payload
	if payload, ok := doc["payload"].(map[string]interface{}); ok {
		ids.fromObject(payload)
	}
}

func (ids *exchangeIDs) fromObject(doc map[string]interface{}) {
	if orderID, ok := doc["order_id"].(string); ok && orderID != "" {
		ids.orderID = orderID
	}
	id, _ := doc["id"].(string)
	switch {
	case strings.HasPrefix(id, "pay_"):
		ids.paymentID = id
	case strings.HasPrefix(id, "order_"):
		ids.orderID = id
	}
}

func isSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

// filterSensitiveHeaders masks headers whose name looks sensitive.
func filterSensitiveHeaders(headers http.Header) map[string]string {
	filtered := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			filtered[name] = "[FILTERED]"
			continue
		}
		filtered[name] = strings.Join(values, ", ")
	}
	return filtered
}

// filterSensitiveBody masks sensitive JSON fields. Non-JSON bodies are logged
// as-is unless they mention a sensitive field name.
func filterSensitiveBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		if isSensitive(string(body)) {
			return "[FILTERED - Contains sensitive data]"
		}
		return string(body)
	}

	filtered, err := json.Marshal(filterSensitiveJSON(data))
	if err != nil {
		return "[ERROR - Failed to marshal filtered JSON]"
	}
	return string(filtered)
}

func filterSensitiveJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		filtered := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				filtered[key] = "[FILTERED]"
				continue
			}
			filtered[key] = filterSensitiveJSON(value)
		}
		return filtered
	case []interface{}:
		filtered := make([]interface{}, len(v))
		for i, item := range v {
			filtered[i] = filterSensitiveJSON(item)
		}
		return filtered
	default:
		return v
	}
}

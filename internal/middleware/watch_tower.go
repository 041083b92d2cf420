package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"dex-backend/internal/metrics"
	"dex-backend/internal/signing"
	"dex-backend/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxWatchTowerBody = 4 << 20

// WatchTowerAuth authenticates the trusted observer by HMAC-SHA256 over the
// canonical JSON body (without signature and timestamp) plus a timestamp window.
type WatchTowerAuth struct {
	secret []byte
	window time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

// NewWatchTowerAuth creates the watch tower middleware
func NewWatchTowerAuth(secret string, window time.Duration, logger *logrus.Logger) *WatchTowerAuth {
	return &WatchTowerAuth{
		secret: []byte(secret),
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// Require rejects unauthenticated watch tower requests with 403
func (w *WatchTowerAuth) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWatchTowerBody))
		if err != nil {
			w.reject(c, "unreadable body")
			return
		}
		if err := w.authenticate(raw, c.GetHeader("Signature"), c.GetHeader("Timestamp")); err != nil {
			w.reject(c, err.Detail)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		c.Next()
	}
}

// authenticate verifies the MAC and the timestamp. Both checks always run.
func (w *WatchTowerAuth) authenticate(raw []byte, headerSig, headerTs string) *types.AuthError {
	if len(w.secret) == 0 {
		return types.NewWatchTowerAuthError("watch tower secret not configured")
	}

	body := map[string]interface{}{}
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return types.NewWatchTowerAuthError("malformed body")
		}
	}

	signature := headerSig
	if v, ok := body["signature"].(string); ok {
		signature = v
	}
	timestamp := headerTs
	switch v := body["timestamp"].(type) {
	case json.Number:
		timestamp = v.String()
	case string:
		timestamp = v
	}
	delete(body, "signature")
	delete(body, "timestamp")

	payload, err := signing.CanonicalJSON(body)
	if err != nil {
		return types.NewWatchTowerAuthError("malformed body")
	}
	macOK := signing.VerifyHMAC(w.secret, payload, signature)

	tsOK := false
	if ts, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		tsOK = signing.TimestampWithin(w.now(), ts, w.window)
	}

	switch {
	case !macOK:
		return types.NewWatchTowerAuthError("bad signature")
	case !tsOK:
		return types.NewWatchTowerAuthError("bad timestamp")
	}
	return nil
}

func (w *WatchTowerAuth) reject(c *gin.Context, detail string) {
	metrics.AdmissionRejections.WithLabelValues(string(types.ErrWatchTowerAuthFail)).Inc()
	w.logger.WithFields(logrus.Fields{
		"path":      c.Request.URL.Path,
		"method":    c.Request.Method,
		"client_ip": c.ClientIP(),
		"reason":    detail,
	}).Warn("Watch tower auth failed")

	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"detail": string(types.ErrWatchTowerAuthFail),
	})
}

// SignBody adds signature and timestamp to a watch tower body. It is the
// client side of Require.
func SignBody(secret string, body map[string]interface{}, now time.Time) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	normalized := map[string]interface{}{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&normalized); err != nil {
		return nil, err
	}
	delete(normalized, "signature")
	delete(normalized, "timestamp")
	payload, err := signing.CanonicalJSON(normalized)
	if err != nil {
		return nil, err
	}
	normalized["signature"] = signing.ComputeHMAC([]byte(secret), payload)
	normalized["timestamp"] = now.UnixMilli()
	return json.Marshal(normalized)
}

package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/salesops/internal/infrastructure/cache"
	"github.com/erp/salesops/internal/interfaces/http/dto"
)

const (
	// HeaderIdempotencyKey lets clients retry a mutating request safely
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplayed marks a response served from the idempotency store
	HeaderIdempotentReplayed = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
)

// IdempotencyConfig configures the Idempotency middleware
type IdempotencyConfig struct {
	Store  cache.IdempotencyStore
	TTL    time.Duration
	Logger *zap.Logger
}

// Idempotency replays the stored response of a mutating request that repeats
// an Idempotency-Key. A key reused with a different request body is rejected,
// as is a key whose first request is still running. 5xx outcomes are not
// stored so the client can retry them. Store outages fail open.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || cfg.Store == nil || !isMutating(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			abortWithCode(c, dto.ErrCodeInvalidInput, HeaderIdempotencyKey+" is too long")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abortWithCode(c, dto.ErrCodeRequestTooLarge, "Request body could not be read")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		storeKey := scopedKey(c, key)
		fingerprint := requestFingerprint(c, body)

		record, err := cfg.Store.Begin(ctx, storeKey, fingerprint, cfg.TTL)
		switch {
		case errors.Is(err, cache.ErrIdempotencyInFlight):
			abortWithCode(c, dto.ErrCodeIdempotencyInFlight, "A request with this Idempotency-Key is still being processed")
			return
		case err != nil:
			log.Warn("Idempotency store unavailable, processing request without replay protection",
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err),
			)
			c.Next()
			return
		case record != nil:
			if record.Fingerprint != fingerprint {
				abortWithCode(c, dto.ErrCodeIdempotencyMismatch, "Idempotency-Key was already used with a different request")
				return
			}
			c.Header(HeaderIdempotentReplayed, "true")
			c.Data(record.Status, record.ContentType, record.Body)
			c.Abort()
			return
		}

		capture := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = capture
		defer func() {
			if rec := recover(); rec != nil {
				_ = cfg.Store.Abandon(ctx, storeKey)
				panic(rec)
			}
		}()
		c.Next()

		status := capture.Status()
		if status >= http.StatusInternalServerError {
			if err := cfg.Store.Abandon(ctx, storeKey); err != nil {
				log.Warn("Failed to release idempotency key", zap.Error(err))
			}
			return
		}
		err = cfg.Store.Complete(ctx, storeKey, cache.IdempotencyRecord{
			Fingerprint: fingerprint,
			Status:      status,
			ContentType: capture.Header().Get("Content-Type"),
			Body:        capture.body.Bytes(),
		}, cfg.TTL)
		if err != nil {
			log.Warn("Failed to store idempotent response", zap.Error(err))
		}
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// scopedKey keeps keys of different actors apart
func scopedKey(c *gin.Context, key string) string {
	if actor := GetActorID(c); actor != nil {
		return actor.String() + ":" + key
	}
	return "anonymous:" + key
}

func requestFingerprint(c *gin.Context, body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte{0})
	h.Write([]byte(c.Request.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func abortWithCode(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// captureWriter tees the response body into a buffer
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader carries the client chosen key
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader is set on responses served from the store
	IdempotentReplayHeader = "Idempotent-Replayed"
	// MaxIdempotencyKeyLength bounds client supplied keys
	MaxIdempotencyKeyLength = 255
)

// responseRecorder copies everything written to the client
type responseRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency makes mutating requests that carry an Idempotency-Key header
// safe to retry. The first request holding a key runs and its response is
// stored; later requests with the same key get that response replayed.
// A request arriving while the first is still running is answered with 409.
// Server errors and panics release the key so the client can retry.
//
// Keys are scoped by method and path. Reusing a key with a different body is
// rejected with 422 so a mistyped retry cannot replay another command's
// outcome. Requests without the header pass
// through untouched. If the store is unreachable the request runs without
// protection and a warning is logged.
func Idempotency(store shared.IdempotencyStore, cfg shared.IdempotencyConfig, logger *zap.Logger) gin.HandlerFunc {
	if !cfg.Enabled || store == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = shared.DefaultIdempotencyConfig().TTL
	}
	logger = logger.Named("http.idempotency")

	return func(c *gin.Context) {
		if !isMutating(c.Request.Method) {
			c.Next()
			return
		}
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > MaxIdempotencyKeyLength {
			abortWithCode(c, dto.ErrCodeIdempotencyKeyInvalid, "Idempotency-Key is too long")
			return
		}

		fingerprint, err := bodyFingerprint(c)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				abortWithCode(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
				return
			}
			abortWithCode(c, dto.ErrCodeBadRequest, "Request body could not be read")
			return
		}

		ctx := c.Request.Context()
		storeKey := c.Request.Method + " " + c.Request.URL.Path + " " + key
		log := logger.With(zap.String("idempotency_key", key), zap.String("request_id", GetRequestID(c)))

		stored, err := store.Lookup(ctx, storeKey)
		if err != nil {
			log.Warn("Idempotency lookup failed, running request unprotected", zap.Error(err))
			c.Next()
			return
		}
		if stored != nil {
			if !stored.Pending && stored.Fingerprint != "" && stored.Fingerprint != fingerprint {
				log.Warn("Idempotency-Key reused with a different body")
				abortWithCode(c, dto.ErrCodeIdempotencyKeyReused, "Idempotency-Key was already used for a different request")
				return
			}
			replay(c, stored)
			return
		}

		reserved, err := store.Reserve(ctx, storeKey, cfg.TTL)
		if err != nil {
			log.Warn("Idempotency reserve failed, running request unprotected", zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			// Lost the race to a concurrent request with the same key
			abortWithCode(c, dto.ErrCodeIdempotencyInFlight, "A request with this Idempotency-Key is still being processed")
			return
		}

		recorder := &responseRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder

		// The client may be gone; the outcome must still be recorded
		bg := context.WithoutCancel(ctx)
		release := func() {
			if err := store.Release(bg, storeKey); err != nil {
				log.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}

		// A panic skips everything after c.Next; the key is released before
		// the recovery middleware answers 500.
		defer func() {
			if r := recover(); r != nil {
				release()
				panic(r)
			}
		}()

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			release()
			return
		}
		if err := store.Complete(bg, storeKey, shared.IdempotentResponse{
			StatusCode:  status,
			Body:        recorder.body.Bytes(),
			Fingerprint: fingerprint,
		}, cfg.TTL); err != nil {
			log.Warn("Failed to store idempotent response", zap.Error(err))
		}
	}
}

// bodyFingerprint hashes the request body and rewinds it for the handler
func bodyFingerprint(c *gin.Context) (string, error) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return "", nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func replay(c *gin.Context, stored *shared.IdempotentResponse) {
	if stored.Pending {
		abortWithCode(c, dto.ErrCodeIdempotencyInFlight, "A request with this Idempotency-Key is still being processed")
		return
	}
	c.Header(IdempotentReplayHeader, "true")
	c.Data(stored.StatusCode, "application/json; charset=utf-8", stored.Body)
	c.Abort()
}

func abortWithCode(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

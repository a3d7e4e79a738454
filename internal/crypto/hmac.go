package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// RequestAuth holds the credentials for one venue adapter. Key alone yields
// plain API-key authentication; when Secret is also set, every request is
// HMAC-signed so the venue can verify integrity and freshness.
type RequestAuth struct {
	Key    string
	Secret string
}

// Headers returns the authentication headers for one request. With a
// secret configured the signature is HMAC-SHA256(secret,
// timestamp+method+path+body) encoded as base64.
//
// Returned header keys:
//   - X-Api-Key
//   - X-Api-Timestamp (signed requests only)
//   - X-Api-Signature (signed requests only)
func (a RequestAuth) Headers(method, path, body string) map[string]string {
	return a.HeadersAt(method, path, body, time.Now().Unix())
}

// HeadersAt is like Headers but lets the caller supply the Unix timestamp
// (useful for deterministic testing).
func (a RequestAuth) HeadersAt(method, path, body string, unixTS int64) map[string]string {
	headers := make(map[string]string, 3)
	if a.Key != "" {
		headers["X-Api-Key"] = a.Key
	}
	if a.Secret == "" {
		return headers
	}

	ts := strconv.FormatInt(unixTS, 10)
	headers["X-Api-Timestamp"] = ts
	headers["X-Api-Signature"] = hmacSHA256Base64([]byte(a.Secret), ts+method+path+body)
	return headers
}

// String returns a redacted representation suitable for logging.
func (a RequestAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("RequestAuth{key=%s, secret=%s}", redact(a.Key), redact(a.Secret))
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

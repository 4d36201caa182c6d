package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const replayWindow = 300 * time.Second

// VerifySignature checks an `x-livekit-signature: sha256=<hex>` header
// against payload using secret, and, if timestampHeader is non-empty,
// enforces the ±300s replay window (§6, §8: accept exactly at 300s, reject
// beyond). An empty secret means signature verification is not configured;
// callers must only skip verification in that case (§8 invariant 4).
func VerifySignature(secret string, payload []byte, sigHeader, timestampHeader string, now time.Time) bool {
	if secret == "" {
		return true
	}
	if sigHeader == "" {
		return false
	}

	sig := sigHeader
	if idx := strings.Index(sig, "="); idx >= 0 && strings.HasPrefix(sig, "sha256=") {
		sig = sig[idx+1:]
	}

	if timestampHeader != "" {
		ts, err := strconv.ParseInt(timestampHeader, 10, 64)
		if err != nil {
			return false
		}
		skew := now.Unix() - ts
		if skew < 0 {
			skew = -skew
		}
		if time.Duration(skew)*time.Second > replayWindow {
			return false
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(strings.ToLower(sig)), []byte(strings.ToLower(expected)))
}

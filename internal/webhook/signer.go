package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// sign computes the `X-Monkeys-Signature` header value over
// "{timestampSeconds}.{body}" using HMAC-SHA256 with secret, and returns it
// alongside the timestamp header value it was computed from.
func sign(secret string, body []byte, at time.Time) (timestamp, signature string) {
	timestamp = strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	signature = fmt.Sprintf("v1=%s,alg=HMAC-SHA256", hex.EncodeToString(mac.Sum(nil)))
	return timestamp, signature
}

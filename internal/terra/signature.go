package terra

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// SignatureHeader is the webhook header carrying the HMAC signature.
const SignatureHeader = "terra-signature"

const previewLength = 120

// SignatureCheck is the outcome of a webhook signature verification. Computed
// and PayloadPreview exist for diagnostic logging only and must never feed a
// trust decision.
type SignatureCheck struct {
	Valid          bool
	Computed       string
	PayloadPreview string
}

// VerifySignature checks the HMAC-SHA256 signature of a webhook delivery.
// rawBody must be the exact bytes read off the wire; verifying a re-serialized
// body is invalid. The header may carry either a bare hex digest or a
// composite "signature=...,timestamp=..." / "v1=...,t=..." value; when a
// timestamp is present the signed payload is "{timestamp}.{body}".
func VerifySignature(headers http.Header, rawBody []byte, secret string) SignatureCheck {
	headerValue := headers.Get(SignatureHeader)
	body := string(rawBody)

	if headerValue == "" {
		return SignatureCheck{Valid: false, PayloadPreview: preview(body)}
	}

	parts := parseSignatureHeader(headerValue)
	provided := headerValue
	if v, ok := parts["signature"]; ok {
		provided = v
	} else if v, ok := parts["v1"]; ok {
		provided = v
	}

	payloadToSign := body
	if timestamp, ok := parts["timestamp"]; ok {
		payloadToSign = timestamp + "." + body
	} else if timestamp, ok := parts["t"]; ok {
		payloadToSign = timestamp + "." + body
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(payloadToSign))
	computed := hex.EncodeToString(mac.Sum(nil))

	if len(computed) != len(provided) {
		return SignatureCheck{Valid: false, Computed: computed, PayloadPreview: preview(payloadToSign)}
	}

	return SignatureCheck{
		Valid:          hmac.Equal([]byte(computed), []byte(provided)),
		Computed:       computed,
		PayloadPreview: preview(payloadToSign),
	}
}

func parseSignatureHeader(value string) map[string]string {
	parts := map[string]string{}
	for _, segment := range strings.Split(value, ",") {
		key, val, found := strings.Cut(segment, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if key != "" && val != "" {
			parts[key] = val
		}
	}
	return parts
}

func preview(payload string) string {
	if len(payload) > previewLength {
		return payload[:previewLength]
	}
	return payload
}

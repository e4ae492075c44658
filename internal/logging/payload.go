package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync/atomic"
	"unicode/utf8"

	"github.com/regenrek/termflow/internal/limits"
)

const payloadPreviewBytes = 256

var includePayloads atomic.Bool

func setIncludePayloads(v bool) {
	includePayloads.Store(v)
}

// IncludePayloads reports whether chunk contents may appear in logs.
func IncludePayloads() bool {
	return includePayloads.Load()
}

// PayloadAttr describes an output chunk as a group with its length and a
// short hash. The quoted head is added only when payload logging is enabled.
func PayloadAttr(key string, payload []byte) slog.Attr {
	if key == "" {
		key = "payload"
	}
	attrs := []any{slog.Int("len", len(payload))}
	if len(payload) > 0 {
		attrs = append(attrs, slog.String("sha256", payloadDigest(payload)))
	}
	if IncludePayloads() && len(payload) > 0 {
		attrs = append(attrs, slog.String("head", payloadHead(payload)))
	}
	return slog.Group(key, attrs...)
}

// payloadDigest hashes at most limits.PayloadInspectLimit bytes so logging a
// huge chunk stays cheap.
func payloadDigest(payload []byte) string {
	data := payload
	if limit := limits.PayloadInspectLimit; limit > 0 && len(data) > limit {
		data = data[:limit]
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6])
}

func payloadHead(payload []byte) string {
	if len(payload) <= payloadPreviewBytes {
		return strconv.Quote(string(payload))
	}
	cut := payloadPreviewBytes
	for cut > 0 && !utf8.RuneStart(payload[cut]) {
		cut--
	}
	return strconv.Quote(string(payload[:cut])) + "...(+" + strconv.Itoa(len(payload)-cut) + " bytes)"
}

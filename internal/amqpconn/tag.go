package amqpconn

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateConsumerTag builds a consumer tag of the form
// "<prefix>-<YYYYMMDDhhmmss>-<16 alphanumeric>".
func GenerateConsumerTag(prefix string) string {
	ts := time.Now().UTC().Format("20060102150405")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(suffix) > 16 {
		suffix = suffix[:16]
	}
	return prefix + "-" + ts + "-" + suffix
}

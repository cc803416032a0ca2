package logger

import "strings"

const (
	formatKV   = "kv"
	formatJSON = "json"
)

var allowedLevels = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// defaultKeyOrder fixes the position of well-known attributes so log lines
// stay grep-able regardless of call-site argument order.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"cb_key",
	"action",
	"step",
	"code",
	"content_id",
	"channel_id",
	"run_id",
	"delivered",
	"blocked",
	"count",
	"cache",
	"duration_ms",
	"payload",
	"err",
	"cause",
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

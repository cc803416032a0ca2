package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   string
	keyOrder []string
}

// structuredHandler renders records as single-line KV or JSON output with a
// fixed key order, so lines from different components align.
type structuredHandler struct {
	cfg      handlerConfig
	rank     map[string]int
	preAttrs []slog.Attr
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.format == "" {
		cfg.format = formatKV
	}
	if len(cfg.keyOrder) == 0 {
		cfg.keyOrder = defaultKeyOrder
	}
	rank := make(map[string]int, len(cfg.keyOrder))
	for i, k := range cfg.keyOrder {
		rank[k] = i
	}
	return &structuredHandler{cfg: cfg, rank: rank}
}

// Enabled implements slog.Handler.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.cfg.level == nil {
		return true
	}
	return level >= h.cfg.level.Level()
}

// WithAttrs implements slog.Handler.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preAttrs = append(append([]slog.Attr(nil), h.preAttrs...), attrs...)
	return &clone
}

// WithGroup implements slog.Handler; groups are flattened with a dot prefix.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	return h
}

// Handle implements slog.Handler.
func (h *structuredHandler) Handle(_ context.Context, rec slog.Record) error {
	pairs := make(map[string]string, rec.NumAttrs()+len(h.preAttrs)+4)
	pairs["ts"] = rec.Time.UTC().Format(time.RFC3339Nano)
	pairs["level"] = normalizeLevel(rec.Level.String())
	pairs["event"] = rec.Message

	collect := func(a slog.Attr) bool {
		if a.Key == "" {
			return true
		}
		pairs[a.Key] = renderValue(a.Value)
		return true
	}
	for _, a := range h.preAttrs {
		collect(a)
	}
	rec.Attrs(collect)

	keys := h.orderKeys(pairs)

	var line []byte
	switch h.cfg.format {
	case formatJSON:
		line = renderJSON(keys, pairs)
	default:
		line = renderKV(keys, pairs)
	}
	line = append(line, '\n')
	return h.cfg.writer.Write(line)
}

func (h *structuredHandler) orderKeys(pairs map[string]string) []string {
	known := make([]string, 0, len(pairs))
	rest := make([]string, 0, len(pairs))
	for k := range pairs {
		if _, ok := h.rank[k]; ok {
			known = append(known, k)
		} else {
			rest = append(rest, k)
		}
	}
	sort.Slice(known, func(i, j int) bool { return h.rank[known[i]] < h.rank[known[j]] })
	sort.Strings(rest)
	return append(known, rest...)
}

func renderValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v.Any())
	}
}

func renderKV(keys []string, pairs map[string]string) []byte {
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(quoteIfNeeded(pairs[k]))
	}
	return []byte(b.String())
}

func renderJSON(keys []string, pairs map[string]string) []byte {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(pairs[k])
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return []byte(b.String())
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

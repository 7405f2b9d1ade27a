package util

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MaskValue replaces redacted field values
const MaskValue = "[REDACTED]"

// sensitiveKeys are field keys whose values never reach the log output.
// Subject identifiers are included so scan logs can be shared.
var sensitiveKeys = map[string]bool{
	"name":          true,
	"email":         true,
	"phone":         true,
	"address":       true,
	"query":         true,
	"value":         true,
	"context":       true,
	"authorization": true,
	"api_key":       true,
	"apikey":        true,
	"token":         true,
	"password":      true,
	"cookie":        true,
	"proxy_auth":    true,
}

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`^sk-[A-Za-z0-9_-]{16,}$`),
	regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`(?i)[a-z0-9._+\-]+%40[a-z0-9.\-]+\.[a-z]{2,}`), // Emails inside query strings
}

// InitLogger initializes the global zap logger with a redacting core
func InitLogger(level, format string) error {
	var zapCfg zap.Config
	if format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return eris.Wrap(err, "parse log level")
	}
	zapCfg.Level.SetLevel(lvl)

	logger, err := zapCfg.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return NewRedactingCore(core)
	}))
	if err != nil {
		return eris.Wrap(err, "build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// RedactingCore masks sensitive fields before they reach the wrapped core
type RedactingCore struct {
	zapcore.Core
}

// NewRedactingCore wraps core
func NewRedactingCore(core zapcore.Core) zapcore.Core {
	return &RedactingCore{Core: core}
}

// With redacts fields attached to a child logger
func (c *RedactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &RedactingCore{Core: c.Core.With(redactFields(fields))}
}

// Check routes enabled entries through this core so Write can redact
func (c *RedactingCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

// Write redacts fields and writes the entry
func (c *RedactingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(entry, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if isSensitiveKey(f.Key) {
			out[i] = zap.String(f.Key, MaskValue)
			continue
		}
		if f.Type == zapcore.StringType && isSensitiveValue(f.String) {
			out[i] = zap.String(f.Key, MaskValue)
			continue
		}
		// Transport errors embed the request URL, and search URLs carry identifiers
		if err, ok := f.Interface.(error); ok && f.Type == zapcore.ErrorType && isSensitiveValue(err.Error()) {
			out[i] = zap.String(f.Key, MaskValue)
			continue
		}
		out[i] = f
	}
	return out
}

func isSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(strings.ReplaceAll(key, "-", "_"))]
}

func isSensitiveValue(v string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(v) {
			return true
		}
	}
	return false
}

package logger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

// palette holds the handful of colors the console encoder uses
type palette struct {
	fg       string
	time     string
	accent   string // component names
	artifact string // artifact paths and kinds
	number   string
	yellow   string
	red      string
	redBg    string
	yellowBg string
}

// Gruvbox Dark color palette (warm, muted, easy on eyes)
var gruvbox = palette{
	fg:       "\x1b[38;5;223m",
	time:     "\x1b[38;5;108m",
	accent:   "\x1b[38;5;208m",
	artifact: "\x1b[38;5;109m",
	number:   "\x1b[38;5;175m",
	yellow:   "\x1b[38;5;214m",
	red:      "\x1b[38;5;167m",
	redBg:    "\x1b[48;5;88m",
	yellowBg: "\x1b[48;5;58m",
}

// Everforest Dark color palette (natural forest greens)
var everforest = palette{
	fg:       "\x1b[38;5;223m",
	time:     "\x1b[38;5;107m",
	accent:   "\x1b[38;5;108m",
	artifact: "\x1b[38;5;109m",
	number:   "\x1b[38;5;108m",
	yellow:   "\x1b[38;5;179m",
	red:      "\x1b[38;5;167m",
	redBg:    "\x1b[48;5;52m",
	yellowBg: "\x1b[48;5;58m",
}

// Current active theme
var currentTheme = "everforest"

// SetTheme configures the color scheme for log output
func SetTheme(theme string) {
	if theme == "everforest" || theme == "gruvbox" {
		currentTheme = theme
	}
}

func colors() palette {
	if currentTheme == "gruvbox" {
		return gruvbox
	}
	return everforest
}

// minimalEncoder implements a calm, compact console encoder with theme support
// Format: "13:04:35  graph  Converted  release/imix.bin  42ms"
type minimalEncoder struct {
	zapcore.Encoder // Embed a base encoder for field serialization
}

func newMinimalEncoder() *minimalEncoder {
	return &minimalEncoder{
		Encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{Encoder: enc.Encoder.Clone()}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	c := colors()
	final := buffer.NewPool().Get()

	final.AppendString(c.time)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level: only show for WARN/ERROR with bold + background
	if ent.Level >= zapcore.WarnLevel {
		final.AppendString("  ")
		final.AppendString(levelColorString(c, ent.Level))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(c.accent)
		final.AppendString(ent.LoggerName)
		final.AppendString(colorReset)
	}

	final.AppendString("  ")
	final.AppendString(c.fg)
	final.AppendString(ent.Message)
	final.AppendString(colorReset)

	if values := extractFieldValues(c, fields); values != "" {
		final.AppendString("  ")
		final.AppendString(values)
	}

	final.AppendString("\n")
	return final, nil
}

// levelColorString returns bold + colored + background for WARN/ERROR
func levelColorString(c palette, level zapcore.Level) string {
	switch level {
	case zapcore.WarnLevel:
		return colorBold + c.yellowBg + c.yellow + "WARN" + colorReset
	default:
		return colorBold + c.redBg + c.red + level.CapitalString() + colorReset
	}
}

// getFieldValue extracts the value from a zap field, handling different field types
func getFieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.BoolType:
		return fmt.Sprintf("%t", field.Integer == 1)
	case zapcore.Float64Type:
		return fmt.Sprintf("%g", math.Float64frombits(uint64(field.Integer)))
	case zapcore.DurationType:
		return time.Duration(field.Integer).String()
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok {
			return err.Error()
		}
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}

// extractFieldValues renders build fields as bare colored values and every
// other field as key=value.
func extractFieldValues(c palette, fields []zapcore.Field) string {
	var values []string

	for _, field := range fields {
		val := getFieldValue(field)
		if val == "" {
			continue
		}
		switch field.Key {
		case FieldArtifact, FieldPath:
			values = append(values, c.artifact+val+colorReset)
		case FieldTool:
			values = append(values, c.accent+val+colorReset)
		case FieldVersion, FieldStamp, FieldState:
			values = append(values, c.number+val+colorReset)
		case FieldDurationMS:
			values = append(values, c.number+val+colorReset+"ms")
		case FieldError:
			values = append(values, c.red+val+colorReset)
		default:
			// Never drop a field silently
			values = append(values, c.fg+field.Key+"="+val+colorReset)
		}
	}

	return strings.Join(values, " ")
}

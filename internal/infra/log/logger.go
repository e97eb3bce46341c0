package log

// Process-wide zap logging
// Console output (SUCCESS/ERROR lines) is ready at package init
// Setup adds the size-capped file log that receives every level

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Logger receives every entry; it is a no-op until Setup attaches the file core.
var Logger = zap.NewNop()

var consoleLogger = zap.NewNop()
var setupMu sync.Mutex
var fileWriter *rotatingLogWriter

func init() {
	l, err := newConsoleLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize console logger: %v\n", err)
		return
	}
	consoleLogger = l
}

func newConsoleLogger() (*zap.Logger, error) {
	consoleConfig := zap.NewDevelopmentConfig()
	consoleConfig.EncoderConfig.EncodeLevel = customLevelEncoder
	consoleConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	consoleConfig.EncoderConfig.EncodeCaller = nil
	consoleConfig.Development = false
	consoleConfig.DisableStacktrace = true
	consoleConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	return consoleConfig.Build()
}

// Setup routes all levels into <logsDir>/app.log. Calling it again reopens the file.
func Setup(logsDir string) error {
	if logsDir == "" {
		logsDir = "logs"
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	writer, err := newRotatingLogWriter(filepath.Join(logsDir, "app.log"))
	if err != nil {
		return err
	}

	core := zapcore.NewCore(
		newFileEncoder(),
		zapcore.AddSync(writer),
		zapcore.DebugLevel,
	)

	setupMu.Lock()
	defer setupMu.Unlock()
	if fileWriter != nil {
		_ = fileWriter.Close()
	}
	fileWriter = writer
	Logger = zap.New(core)
	return nil
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = Logger.Sync()
	_ = consoleLogger.Sync()
}

// GenerateRequestID returns a short random id for correlating a request and its response.
func GenerateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// RequestLogger tags every entry of one outbound request with its id and upstream name.
func RequestLogger(requestID, endpoint string) *zap.Logger {
	return Logger.With(zap.String("request_id", requestID), zap.String("endpoint", endpoint))
}

// LogResponse writes the outcome of a request. Anything but 2xx is also shown on the console.
func LogResponse(logger *zap.Logger, endpoint string, statusCode int, durationMs int64, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMs),
	}, fields...)

	if statusCode >= 200 && statusCode < 300 {
		logger.Info("HTTP response", fields...)
		return
	}
	logger.Error("HTTP response", fields...)
	consoleLogger.Error(fmt.Sprintf("✗ HTTP request failed [%d] %s", statusCode, endpoint))
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(colorCyan + "DEBUG" + colorReset)
	case zapcore.InfoLevel:
		enc.AppendString(colorGreen + "SUCCESS" + colorReset)
	case zapcore.WarnLevel:
		enc.AppendString(colorYellow + "WARN" + colorReset)
	case zapcore.ErrorLevel, zapcore.FatalLevel, zapcore.PanicLevel:
		enc.AppendString(colorRed + level.CapitalString() + colorReset)
	default:
		enc.AppendString(colorWhite + level.String() + colorReset)
	}
}

func LogInfo(message string, fields ...zap.Field) {
	Logger.Info(message, fields...)
}

// LogSuccess goes to the file and prints a check-marked line on the console.
func LogSuccess(message string, fields ...zap.Field) {
	Logger.Info(message, fields...)
	consoleLogger.Info(consoleLine("✓", message, fields))
}

// LogError goes to the file and prints a cross-marked line on the console.
func LogError(message string, fields ...zap.Field) {
	Logger.Error(message, fields...)
	consoleLogger.Error(consoleLine("✗", message, fields))
}

func consoleLine(mark, message string, fields []zap.Field) string {
	if ms := extractDuration(fields); ms > 0 {
		return fmt.Sprintf("%s %s (%dms)", mark, message, ms)
	}
	return mark + " " + message
}

func LogWarn(message string, fields ...zap.Field) {
	Logger.Warn(message, fields...)
}

func LogDebug(message string, fields ...zap.Field) {
	Logger.Debug(message, fields...)
}

// LogJSON writes a payload at debug level, indented when it is valid JSON.
func LogJSON(logger *zap.Logger, label string, data []byte) {
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		logger.Debug(label, zap.ByteString("body", data))
		return
	}
	logger.Debug(label + "\n" + pretty.String())
}

func extractDuration(fields []zap.Field) int64 {
	for _, field := range fields {
		if field.Key == "duration_ms" && field.Type == zapcore.Int64Type {
			return field.Integer
		}
	}
	return 0
}

// MaxLogFileSize caps app.log; the file is truncated once it grows past it.
const MaxLogFileSize = 50 * 1024 * 1024

type rotatingLogWriter struct {
	file *os.File
	path string
	mu   sync.Mutex
}

func newRotatingLogWriter(path string) (*rotatingLogWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	w := &rotatingLogWriter{file: file, path: path}
	if err := w.truncateIfTooBig(); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

func (w *rotatingLogWriter) truncateIfTooBig() error {
	info, err := w.file.Stat()
	if err != nil || info.Size() <= MaxLogFileSize {
		return nil
	}
	w.file.Close()
	w.file, err = os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to truncate log file: %w", err)
	}
	return nil
}

func (w *rotatingLogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.truncateIfTooBig(); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

func (w *rotatingLogWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

func (w *rotatingLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

var bufferPool = buffer.NewPool()

// fileEncoder renders "time     LEVEL message\t{json fields}" lines.
// Fields added through Logger.With are kept in the embedded map and merged into every line.
type fileEncoder struct {
	*zapcore.MapObjectEncoder
}

func newFileEncoder() *fileEncoder {
	return &fileEncoder{MapObjectEncoder: zapcore.NewMapObjectEncoder()}
}

func (e *fileEncoder) Clone() zapcore.Encoder {
	clone := newFileEncoder()
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	return clone
}

func (e *fileEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf := bufferPool.Get()
	buf.AppendString(entry.Time.Format("2006-01-02 15:04:05"))
	buf.AppendString("     ")
	buf.AppendString(entry.Level.CapitalString())
	buf.AppendByte(' ')
	buf.AppendString(entry.Message)

	if len(e.Fields)+len(fields) > 0 {
		all := e.Clone().(*fileEncoder)
		for _, f := range fields {
			f.AddTo(all)
		}
		if data, err := json.Marshal(all.Fields); err == nil {
			buf.AppendByte('\t')
			buf.Write(data)
		}
	}
	buf.AppendByte('\n')
	return buf, nil
}

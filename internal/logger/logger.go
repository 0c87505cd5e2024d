package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Logger struct {
	mu           sync.Mutex
	out          io.Writer
	logFile      *os.File
	colorEnabled bool
	minLevel     LogLevel
}

// NewLogger writes coloured lines to stdout and JSON lines to logs/pos-<date>.log.
func NewLogger() *Logger {
	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Fatal("Failed to create logs directory:", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	logFileName := fmt.Sprintf("logs/pos-%s.log", timestamp)

	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal("Failed to create log file:", err)
	}

	logger := &Logger{
		out:          os.Stdout,
		logFile:      logFile,
		colorEnabled: true,
		minLevel:     levelFromEnv(),
	}

	logger.Info("LOGGER", "Logging system initialized")
	logger.Info("LOGGER", fmt.Sprintf("Log file: %s", logFileName))

	return logger
}

// NewConsoleLogger writes plain lines to w only. Used by CLIs and tests.
func NewConsoleLogger(w io.Writer) *Logger {
	return &Logger{out: w, minLevel: DEBUG}
}

func levelFromEnv() LogLevel {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func (l *Logger) log(level LogLevel, category, message string) {
	if level < l.minLevel {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     l.levelToString(level),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out != nil {
		fmt.Fprint(l.out, l.formatTerminalOutput(entry))
	}
	if l.logFile != nil {
		l.logFile.WriteString(l.formatJSONOutput(entry) + "\n")
	}
}

func (l *Logger) formatTerminalOutput(entry LogEntry) string {
	timestamp := entry.Timestamp[11:19]

	if !l.colorEnabled {
		return fmt.Sprintf("%s %-5s [%-10s] %s\n", timestamp, entry.Level, entry.Category, entry.Message)
	}

	var levelColor, categoryColor *color.Color

	switch entry.Level {
	case "DEBUG":
		levelColor = color.New(color.FgCyan)
		categoryColor = color.New(color.FgCyan, color.Bold)
	case "INFO":
		levelColor = color.New(color.FgGreen)
		categoryColor = color.New(color.FgGreen, color.Bold)
	case "WARN":
		levelColor = color.New(color.FgYellow)
		categoryColor = color.New(color.FgYellow, color.Bold)
	case "ERROR":
		levelColor = color.New(color.FgRed)
		categoryColor = color.New(color.FgRed, color.Bold)
	case "FATAL":
		levelColor = color.New(color.FgRed, color.Bold)
		categoryColor = color.New(color.FgRed, color.Bold)
	default:
		levelColor = color.New(color.FgWhite)
		categoryColor = color.New(color.FgWhite, color.Bold)
	}

	timeStr := color.New(color.FgBlue).Sprintf("%s", timestamp)
	levelStr := levelColor.Sprintf("%-5s", entry.Level)
	categoryStr := categoryColor.Sprintf("[%-10s]", entry.Category)

	if entry.File != "" && entry.Line > 0 {
		fileInfo := color.New(color.FgMagenta).Sprintf(" (%s:%d)", entry.File, entry.Line)
		return fmt.Sprintf("%s %s %s %s%s\n", timeStr, levelStr, categoryStr, entry.Message, fileInfo)
	}

	return fmt.Sprintf("%s %s %s %s\n", timeStr, levelStr, categoryStr, entry.Message)
}

func (l *Logger) formatJSONOutput(entry LogEntry) string {
	jsonBytes, _ := json.Marshal(entry)
	return string(jsonBytes)
}

func (l *Logger) levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "INFO"
	}
}

func (l *Logger) Debug(category, message string) {
	l.log(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.log(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.log(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.log(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	os.Exit(1)
}

// Specialized logging methods for different components
func (l *Logger) LogOrder(action, orderID, message string) {
	l.log(INFO, "ORDER", fmt.Sprintf("[%s] %s - %s", action, orderID, message))
}

func (l *Logger) LogCash(action, sessionID, message string) {
	l.log(INFO, "CASH", fmt.Sprintf("[%s] %s - %s", action, sessionID, message))
}

func (l *Logger) LogTable(action, tableID, message string) {
	l.log(INFO, "TABLE", fmt.Sprintf("[%s] %s - %s", action, tableID, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.log(INFO, "API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.log(INFO, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.log(INFO, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.log(WARN, "SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.Info("LOGGER", "Closing log file")
		l.logFile.Close()
	}
}

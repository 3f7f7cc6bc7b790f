package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// LoggerNames lists the loggers used by dCap, InitLoggers sets their level
var LoggerNames = []string{"store", "rpc", "transport/rpc"}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// dCapLogger implements the ILogger interface with custom formatting
type dCapLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *dCapLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *dCapLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *dCapLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *dCapLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *dCapLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *dCapLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message
func (l *dCapLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// NewLoggerFactory returns a dragonboat logger factory writing to w
func NewLoggerFactory(w io.Writer) logger.Factory {
	return func(pkgName string) logger.ILogger {
		return &dCapLogger{
			name:   pkgName,
			level:  logger.INFO,
			logger: log.New(w, "", log.Ldate|log.Ltime),
		}
	}
}

// CreateLogger creates a logger writing to stdout
func CreateLogger(pkgName string) logger.ILogger {
	return NewLoggerFactory(os.Stdout)(pkgName)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the custom logger factory and sets the level of all dCap loggers
func InitLoggers(config ServerConfig) error {
	level, err := ParseLogLevel(config.LogLevel)
	if err != nil {
		return err
	}

	// Set as the global logger factory for Dragonboat
	logger.SetLoggerFactory(CreateLogger)

	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(level)
	}
	return nil
}

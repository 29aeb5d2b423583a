package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Types int

const (
	Debug Types = iota
	Info
	Warn
	Error
	Fatal
)

// Message is a single queued log line.
type Message struct {
	Timestamp time.Time
	Tag       string
	Message   string
	LogTypes  Types
}

// Options configures the process-wide log manager.
type Options struct {
	// Dev mirrors every line to Console (or the std logger when Console is nil).
	Dev bool
	// Dir is where the log file is created. Empty disables file logging.
	Dir string
	// Console is usually the tview debug console.
	Console io.Writer
}

type manager struct {
	console io.Writer
	dev     bool
	file    *os.File
	logChan chan Message
	done    chan struct{}
	closed  chan struct{}
	once    sync.Once
}

type Logger struct {
	tag string
}

var (
	mu         sync.RWMutex
	logManager *manager
)

// Init sets up the shared manager. Calling it again replaces the previous
// manager after closing it.
func Init(opts Options) error {
	m := &manager{
		console: opts.Console,
		dev:     opts.Dev,
		logChan: make(chan Message, 100),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
	}

	if opts.Dir != "" {
		timestamp := time.Now().Format("20060102_150405")
		fileName := fmt.Sprintf("agentchat_log_%s.log", timestamp)

		file, err := os.OpenFile(filepath.Join(opts.Dir, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		m.file = file
	}

	go m.processLogs()

	mu.Lock()
	prev := logManager
	logManager = m
	mu.Unlock()

	if prev != nil {
		prev.close()
	}
	return nil
}

// Close flushes pending lines and closes the log file.
func Close() {
	mu.Lock()
	m := logManager
	logManager = nil
	mu.Unlock()

	if m != nil {
		m.close()
	}
}

// New returns a logger for tag. Loggers resolve the manager on every call, so
// package level loggers created before Init start writing once Init runs.
func New(tag string) *Logger {
	return &Logger{tag: tag}
}

func (l *Logger) manager() *manager {
	mu.RLock()
	defer mu.RUnlock()
	return logManager
}

func (m *manager) processLogs() {
	defer close(m.closed)
	for {
		select {
		case msg := <-m.logChan:
			m.writeFile(msg)
		case <-m.done:
			for {
				select {
				case msg := <-m.logChan:
					m.writeFile(msg)
				default:
					return
				}
			}
		}
	}
}

func (m *manager) writeFile(msg Message) {
	if m.file == nil {
		return
	}
	timestamp := msg.Timestamp.Format("2006-01-02 15:04:05")
	_, _ = fmt.Fprintf(m.file, "%s [%s] %s: %s\n", timestamp, msg.Tag, msg.LogTypes.String(), msg.Message)
}

func (m *manager) close() {
	m.once.Do(func() {
		close(m.done)
		<-m.closed
		if m.file != nil {
			_ = m.file.Close()
		}
	})
}

func (l *Logger) log(logTypes Types, message string) {
	m := l.manager()
	if m == nil {
		return
	}

	if m.dev {
		if m.console != nil {
			fmt.Fprintf(m.console, "[%s]%s (%s): %s[-]\n", logTypes.color(), logTypes.String(), l.tag, message)
		} else {
			log.Printf("%s (%s): %s", logTypes.String(), l.tag, message)
		}
	}

	if m.file == nil {
		return
	}
	msg := Message{
		Timestamp: time.Now(),
		Tag:       l.tag,
		Message:   message,
		LogTypes:  logTypes,
	}
	select {
	case m.logChan <- msg:
	case <-m.done:
	}
}

func (l *Logger) Debug(v ...interface{}) { l.log(Debug, sprint(v...)) }
func (l *Logger) Info(v ...interface{})  { l.log(Info, sprint(v...)) }
func (l *Logger) Warn(v ...interface{})  { l.log(Warn, sprint(v...)) }
func (l *Logger) Error(v ...interface{}) { l.log(Error, sprint(v...)) }

func (l *Logger) Debugf(format string, v ...interface{}) { l.log(Debug, fmt.Sprintf(format, v...)) }
func (l *Logger) Infof(format string, v ...interface{})  { l.log(Info, fmt.Sprintf(format, v...)) }
func (l *Logger) Warnf(format string, v ...interface{})  { l.log(Warn, fmt.Sprintf(format, v...)) }
func (l *Logger) Errorf(format string, v ...interface{}) { l.log(Error, fmt.Sprintf(format, v...)) }

// Fatal logs, flushes the log file and exits.
func (l *Logger) Fatal(v ...interface{}) {
	l.log(Fatal, sprint(v...))
	Close()
	os.Exit(1)
}

// sprint joins operands with spaces, like log.Println without the newline.
func sprint(v ...interface{}) string {
	s := fmt.Sprintln(v...)
	return s[:len(s)-1]
}

func (t Types) String() string {
	switch t {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (t Types) color() string {
	switch t {
	case Info:
		return "green"
	case Warn:
		return "yellow"
	case Error, Fatal:
		return "red"
	default:
		return "gray"
	}
}

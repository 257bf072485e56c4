package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

var (
	Info = &Logger{log.New(os.Stdout, "INFO ", log.LstdFlags|log.Lshortfile)}
	Warn = &Logger{log.New(os.Stdout, "WARN ", log.LstdFlags|log.Lshortfile)}
	Erro = &Logger{log.New(os.Stderr, "ERRO ", log.LstdFlags|log.Lshortfile)}
	Debg = &Logger{log.New(os.Stdout, "DEBG ", log.LstdFlags|log.Lshortfile)}
)

type Logger struct {
	*log.Logger
}

func (l *Logger) On() {
	l.SetOutput(os.Stdout)
}

func (l *Logger) Off() {
	l.SetOutput(io.Discard)
}

// Leveled routes Debugf/Infof/Warnf/Errorf calls to the package loggers, so
// driver packages can log through the same sinks as the application.
type Leveled struct {
	// Prefix is prepended to every message, e.g. "bmp180: ".
	Prefix string
}

func (l Leveled) Debugf(format string, args ...interface{}) {
	_ = Debg.Output(2, l.Prefix+fmt.Sprintf(format, args...))
}

func (l Leveled) Infof(format string, args ...interface{}) {
	_ = Info.Output(2, l.Prefix+fmt.Sprintf(format, args...))
}

func (l Leveled) Warnf(format string, args ...interface{}) {
	_ = Warn.Output(2, l.Prefix+fmt.Sprintf(format, args...))
}

func (l Leveled) Errorf(format string, args ...interface{}) {
	_ = Erro.Output(2, l.Prefix+fmt.Sprintf(format, args...))
}

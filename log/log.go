// Package log provides the structured, leveled logger used throughout this
// module, in the github.com/ethereum/go-ethereum/log idiom: package-level
// Trace/Debug/Info/Warn/Error/Crit calls taking a message plus alternating
// key/value context, rendered through a terminal handler that color-codes by
// level when stdout is a TTY.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

type Level int

const (
	LvlCrit Level = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

var levelColor = map[Level]*color.Color{
	LvlCrit:  color.New(color.FgHiMagenta, color.Bold),
	LvlError: color.New(color.FgHiRed),
	LvlWarn:  color.New(color.FgHiYellow),
	LvlInfo:  color.New(color.FgHiGreen),
	LvlDebug: color.New(color.FgHiCyan),
	LvlTrace: color.New(color.FgHiBlack),
}

var levelName = map[Level]string{
	LvlCrit:  "CRIT",
	LvlError: "ERRO",
	LvlWarn:  "WARN",
	LvlInfo:  "INFO",
	LvlDebug: "DBUG",
	LvlTrace: "TRCE",
}

// Logger is the package-wide structured logger. The root instance writes to
// stdout; only its level can be changed (SetLevel).
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
	level    Level
}

var root = newTerminalLogger()

func newTerminalLogger() *Logger {
	out := colorable.NewColorableStdout()
	return &Logger{
		out:      out,
		colorize: isatty.IsTerminal(os.Stdout.Fd()),
		level:    LvlInfo,
	}
}

// SetLevel adjusts the minimum level the root logger emits.
func SetLevel(lvl Level) { root.mu.Lock(); root.level = lvl; root.mu.Unlock() }

func (l *Logger) log(lvl Level, msg string, ctx []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lvl > l.level {
		return
	}
	ts := time.Now().Format("01-02|15:04:05.000")
	name := levelName[lvl]
	if l.colorize {
		name = levelColor[lvl].Sprint(name)
	}
	line := fmt.Sprintf("%s[%s] %s", ts, name, msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		line += fmt.Sprintf(" %v=%v", ctx[i], ctx[i+1])
	}
	fmt.Fprintln(l.out, line)
}

func Trace(msg string, ctx ...interface{}) { root.log(LvlTrace, msg, ctx) }
func Debug(msg string, ctx ...interface{}) { root.log(LvlDebug, msg, ctx) }
func Info(msg string, ctx ...interface{})  { root.log(LvlInfo, msg, ctx) }
func Warn(msg string, ctx ...interface{})  { root.log(LvlWarn, msg, ctx) }
func Error(msg string, ctx ...interface{}) { root.log(LvlError, msg, ctx) }
func Crit(msg string, ctx ...interface{})  { root.log(LvlCrit, msg, ctx) }

package lib

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

type LoggerStruct struct {
	Print    func(args ...interface{})
	Flush    func()
	disabled bool
}

var Logger = &LoggerStruct{
	Print: func(args ...interface{}) {
		fmt.Fprint(os.Stderr, args...)
	},
	Flush:    func() {},
	disabled: strings.ToLower(os.Getenv("LOGGING") + " ")[:1] == "n",
}

var doDebug = strings.ToLower(os.Getenv("DEBUG") + " ")[:1] == "y"

// Debug times a named span when DEBUG=y.
type Debug struct {
	start time.Time
	name  string
}

func (d *Debug) Start() {
	Logger.Println("start:", d.name)
}

func (d *Debug) End() {
	Logger.Println("end:", d.name, time.Since(d.start).Round(time.Millisecond))
}

func logRecover(r interface{}) {
	stack := string(debug.Stack())
	Logger.Println(r)
	Logger.Println(stack)
	Logger.Flush()
	panic(r)
}

func caller() string {
	_, file, line, _ := runtime.Caller(2)
	parts := strings.Split(file, "/")
	if len(parts) >= 2 {
		file = strings.Join(parts[len(parts)-2:], "/")
	}
	return fmt.Sprintf("%s:%d: ", file, line)
}

func (l *LoggerStruct) Println(v ...interface{}) {
	if !l.disabled {
		var xs []string
		for _, x := range v {
			xs = append(xs, fmt.Sprint(x))
		}
		l.Print(caller(), strings.Join(xs, " "), "\n")
	}
}

func (l *LoggerStruct) Printf(format string, v ...interface{}) {
	if !l.disabled {
		l.Print(fmt.Sprintf(caller()+format, v...))
	}
}

func (l *LoggerStruct) Fatal(v ...interface{}) {
	var xs []string
	for _, x := range v {
		xs = append(xs, fmt.Sprint(x))
	}
	l.Print(caller(), strings.Join(xs, " "), "\n")
	l.Flush()
	os.Exit(1)
}

func (l *LoggerStruct) Fatalf(format string, v ...interface{}) {
	l.Print(fmt.Sprintf(caller()+format, v...))
	l.Flush()
	os.Exit(1)
}

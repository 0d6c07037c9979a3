package octoserve

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrorKind classifies why a connection could not be served.
type ErrorKind int

const (
	// ReadFailed: the request could not be read or has no target.
	ReadFailed ErrorKind = iota
	// NotFound: the resolved file could not be opened.
	NotFound
	// InternalError: anything else, including unsupported extensions.
	InternalError
)

func (k ErrorKind) String() string {
	switch k {
	case ReadFailed:
		return "read_failed"
	case NotFound:
		return "not_found"
	default:
		return "internal_error"
	}
}

// Status returns the numeric status code sent for this kind.
func (k ErrorKind) Status() int {
	switch k {
	case ReadFailed:
		return 400
	case NotFound:
		return 404
	default:
		return 500
	}
}

// RequestError carries the kind used for dispatch plus debug context for logs.
type RequestError struct {
	Original error
	Kind     ErrorKind
	Message  string
	Path     string

	file     string
	line     int
	function string
}

func (e *RequestError) Error() string {
	base := fmt.Sprintf("[octoserve:%s] %s", e.Kind, e.Message)
	if e.Original != nil {
		return fmt.Sprintf("%s: %v", base, e.Original)
	}
	return base
}

func (e *RequestError) Unwrap() error {
	return e.Original
}

func (e *RequestError) capture(skip int) {
	if pc, file, line, ok := runtime.Caller(skip + 1); ok {
		e.file = file
		e.line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			e.function = fn.Name()
		}
	}
}

func newRequestError(kind ErrorKind, msg string) *RequestError {
	err := &RequestError{Kind: kind, Message: msg}
	err.capture(1)
	return err
}

// wrapRequestError attaches a kind to err. The cause keeps a stack trace for
// the pkgerrors marshaler.
func wrapRequestError(err error, kind ErrorKind, msg string) *RequestError {
	if err == nil {
		return nil
	}
	reqErr := &RequestError{
		Original: errors.WithStack(err),
		Kind:     kind,
		Message:  msg,
	}
	reqErr.capture(1)
	return reqErr
}

// KindOf returns the kind of err. Errors not produced by this package are
// internal errors.
func KindOf(err error) ErrorKind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return InternalError
}

// LogError logs a request failure with the connection context available.
func LogError(logger *zerolog.Logger, err error, c *Ctx) {
	if err == nil || logger == nil {
		return
	}

	kind := KindOf(err)
	var event *zerolog.Event
	if kind == InternalError {
		event = logger.Error().Stack()
	} else {
		event = logger.Info()
	}
	event = event.Err(err).Str("kind", kind.String()).Int("status_code", kind.Status())

	if c != nil {
		event = event.Str("conn_id", c.ID).Str("remote", c.ClientIP())
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Path != "" {
			event = event.Str("path", reqErr.Path)
		}
		event = event.Str("file", shortFile(reqErr.file)).Int("line", reqErr.line).Str("function", shortFunc(reqErr.function))
	}

	event.Msg("[octoserve-error] request failed")
}

// LogPanic logs a recovered task panic with its stack.
func LogPanic(logger *zerolog.Logger, recovered interface{}, stack []byte) {
	if logger == nil {
		return
	}

	var errMsg string
	switch v := recovered.(type) {
	case error:
		errMsg = v.Error()
	case string:
		errMsg = v
	default:
		errMsg = fmt.Sprintf("%v", recovered)
	}

	stackLines := strings.Split(string(stack), "\n")

	// Frames come in pairs: function line, then file:line.
	var panicLocation string
	zStack := make([]string, 0, len(stackLines)/2)
	for i := 1; i+1 < len(stackLines); i += 2 {
		funcLine := strings.TrimSpace(stackLines[i])
		fileLine := strings.TrimSpace(stackLines[i+1])
		if funcLine == "" || fileLine == "" {
			continue
		}
		if panicLocation == "" && strings.HasPrefix(funcLine, "panic(") {
			panicLocation = "next"
			continue
		}
		if panicLocation == "next" {
			panicLocation = funcLine + " at " + fileLine
		}
		zStack = append(zStack, funcLine+"\n\t"+fileLine)
	}
	if panicLocation == "next" {
		panicLocation = ""
	}

	stackArr := zerolog.Arr()
	for _, s := range zStack {
		stackArr = stackArr.Str(s)
	}

	event := logger.Error().
		Str("kind", InternalError.String()).
		Str("panic_summary", errMsg).
		Array("stack_array", stackArr)
	if panicLocation != "" {
		event = event.Str("panic_location", panicLocation)
	}
	event.Msgf("[octoserve-panic] Panic recovered: %s", errMsg)
}

func shortFile(file string) string {
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		return file[idx+1:]
	}
	return file
}

func shortFunc(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

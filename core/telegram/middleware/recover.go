package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/logger"
)

// maxLoggedStack caps the stack written to the log; PanicError keeps all of it.
const maxLoggedStack = 8 << 10

// PanicError stands in for a recovered handler panic so it reaches the bot
// OnError hook like any other error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Code is the error_code reported by the handler summary.
func (e *PanicError) Code() string { return "panic" }

// Unwrap returns the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// RecoverMiddleware turns handler panics into *PanicError.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			pe := &PanicError{Value: r, Stack: debug.Stack()}
			stack := pe.Stack
			if len(stack) > maxLoggedStack {
				stack = stack[:maxLoggedStack]
			}
			logger.Error(tgContext(c), "tg", "tg.panic",
				slog.String("status", "fail"),
				slog.String("err", fmt.Sprint(r)),
				slog.String("stack", string(stack)),
			)
			err = pe
		}()
		return next(c)
	}
}

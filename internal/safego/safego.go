// Package safego contains panics raised inside control ticks and background
// goroutines so a single bad tick never takes the daemon down.
package safego

import (
	"context"
	"fmt"
	"runtime"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
	runtimeutil "k8s.io/apimachinery/pkg/util/runtime"
)

const ErrPanic = errors.ErrorCode("panic_recovered")

func init() {
	runtimeutil.ReallyCrash = false
}

// InitPanicLogger routes recovered panics to log, with a stack trace.
func InitPanicLogger(log logger.Logger) {
	runtimeutil.PanicHandlers = []func(context.Context, any){
		func(_ context.Context, r any) {
			const size = 64 << 10
			stacktrace := make([]byte, size)
			stacktrace = stacktrace[:runtime.Stack(stacktrace, false)]
			log.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(stacktrace)).
				Msg("Observed a panic")
		},
	}
}

// Go runs f in a new goroutine with panic recovery.
func Go(f func()) {
	go func() {
		defer runtimeutil.HandleCrash()

		f()
	}()
}

// Call runs f and turns a panic into an ErrPanic error.
func Call(f func() error) (err error) {
	defer runtimeutil.HandleCrash(func(r any) {
		err = errors.New().WithData(ErrPanic, r)
	})

	return f()
}

package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

var Logger = slog.Default()

// WithRecovery 在独立goroutine中运行fn，panic只打日志不拖垮进程
func WithRecovery(fn func(), name string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				Logger.Error("goroutine_panic_recovered",
					slog.String("worker_name", name),
					slog.String("error", fmt.Sprintf("%v", r)),
					slog.String("stack", stack),
				)
			}
		}()
		fn()
	}()
}

// WithRecoveryNamed 同步执行fn并捕获panic
func WithRecoveryNamed(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			Logger.Error("named_panic_recovered",
				slog.String("worker_name", name),
				slog.String("error", fmt.Sprintf("%v", r)),
				slog.String("stack", stack),
			)
		}
	}()
	fn()
}

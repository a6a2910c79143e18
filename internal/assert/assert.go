package assert

import "fmt"

func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}

// State panics with the formatted message when cond does not hold.
func State(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

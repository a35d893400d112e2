package dispatch

import "fmt"

func fmtType[T any](msg T) string {
	return fmt.Sprintf("%T", msg)
}

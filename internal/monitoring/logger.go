// Package monitoring holds the process-wide diagnostic logging seam.
// Components tag their lines with a bracketed name ("[Cache] ...") so one
// shared sink stays greppable; tests mute it by swapping the sink out.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf
// and may be swapped with SetLogger to redirect or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Prefixed returns a logf that tags every line with the component name.
// The returned function reads Logf at call time, so SetLogger still
// applies to lines logged through it.
func Prefixed(component string) func(format string, v ...interface{}) {
	tag := fmt.Sprintf("[%s] ", component)
	return func(format string, v ...interface{}) {
		Logf(tag+format, v...)
	}
}

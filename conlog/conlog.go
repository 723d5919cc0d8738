// SPDX-License-Identifier: GPL-2.0-or-later

package conlog

import (
	"fmt"
	"log/slog"
	"sync"
)

var (
	mu sync.RWMutex
	p  = func(format string, v ...interface{}) { slog.Info(fmt.Sprintf(format, v...)) }
	dp = func(format string, v ...interface{}) { slog.Debug(fmt.Sprintf(format, v...)) }
	wp = func(format string, v ...interface{}) { slog.Warn(fmt.Sprintf(format, v...)) }

	developer func() bool
)

func SetPrintf(f func(string, ...interface{})) {
	mu.Lock()
	p = f
	mu.Unlock()
}

func SetDPrintf(f func(string, ...interface{})) {
	mu.Lock()
	dp = f
	mu.Unlock()
}

func SetWarnf(f func(string, ...interface{})) {
	mu.Lock()
	wp = f
	mu.Unlock()
}

// SetDeveloper installs the switch that enables DPrintf output.
func SetDeveloper(f func() bool) {
	mu.Lock()
	developer = f
	mu.Unlock()
}

func Printf(format string, v ...interface{}) {
	mu.RLock()
	f := p
	mu.RUnlock()
	f(format, v...)
}

// DPrintf only prints in developer mode
func DPrintf(format string, v ...interface{}) {
	mu.RLock()
	f, dev := dp, developer
	mu.RUnlock()
	if dev == nil || !dev() {
		return
	}
	f(format, v...)
}

func Warnf(format string, v ...interface{}) {
	mu.RLock()
	f := wp
	mu.RUnlock()
	f(format, v...)
}

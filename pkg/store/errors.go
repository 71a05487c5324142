package store

import "errors"

// ErrInvalidScope AlarmScope 必须且只能设置一个 ID
var ErrInvalidScope = errors.New("alarm scope must name exactly one of raid group or alarm definition")

//go:build tools
// +build tools

// Package tools pins the Go tools invoked through `go generate` (mockgen)
// so they are tracked in go.mod and go.sum like any other dependency.
package clip_queue

import (
	_ "go.uber.org/mock/mockgen"
)

// Package transport provides remote command execution for the collectors.
//
// Collectors only depend on the Runner interface; the SSH client is the
// production implementation, and tests substitute canned runners.
package transport

import "context"

// Runner executes a shell command on a host and returns its combined
// output. Implementations must honor the context for cancellation.
type Runner interface {
	Run(ctx context.Context, cmd string) (string, error)
}

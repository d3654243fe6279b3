//go:build windows

package main

import "github.com/pkg/errors"

// setRawIO reports that raw terminal IO isn't wired up on this platform;
// the REPL falls back to buffered line input (db47h-ngaro/cmd/retro/
// term_windows.go takes the same stance).
func setRawIO() (func(), error) {
	return nil, errors.New("raw IO not supported")
}

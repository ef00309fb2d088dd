//go:build windows

package main

import (
	"os"
	"strconv"
)

// detectTerminalWidth relies on COLUMNS; 0 means unknown and the auto layout
// falls back to the table.
func detectTerminalWidth() int {
	if cols, ok := os.LookupEnv("COLUMNS"); ok {
		if n, err := strconv.Atoi(cols); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

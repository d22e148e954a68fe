package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth hides the render URL column below this width.
	LayoutCompactWidth = 100

	// LayoutTimestampWidth is the minimum width to show timestamps.
	LayoutTimestampWidth = 130
)

// Log view limits.
const (
	// LogTailLines is how many lines of the log file are read.
	LogTailLines = 2000
)

// Timing constants.
const (
	// TickInterval refreshes the connection indicator and expires alerts.
	TickInterval = time.Second

	// AlertTTL is how long a rejected mutation stays in the header.
	AlertTTL = 8 * time.Second

	// OpTimeout bounds network calls started from the UI.
	OpTimeout = 10 * time.Second
)

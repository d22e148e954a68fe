// Package config loads the storyboard client configuration.
//
// # Resolution
//
//  1. If a path is given (the -config flag), read it
//  2. Otherwise read ~/.config/storyboard/config.toml
//  3. A missing file is not an error; defaults apply
//  4. Empty or non-positive fields fall back to their defaults
//
// # Fields
//
//	api_url              = "127.0.0.1:8080"   # scheme optional, http assumed
//	default_path         = ""                 # scope opened at startup
//	dialog_debounce_ms   = 1000               # quiet window for caption writes
//	update_coalesce_ms   = 100                # quiet window for push events
//	reconnect_updates    = false              # reopen a failed push stream
//	requests_per_second  = 0                  # 0 means unlimited
//	log_file             = "~/.local/state/storyboard/storyboard.log"
//
// String values are trimmed. Paths starting with "~" are expanded to the home
// directory and made absolute. default_path is stored without leading or
// trailing slashes because scopes are relative to the server's image root.
//
// When default_path is empty the client asks the server (GET /api/path).
package config

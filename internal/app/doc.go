// Package app is the composition root of the storyboard client.
//
// Run loads config.toml and prefs.toml, points slog at the log file, builds the
// gallery client and a session, opens the first scope and hands control to
// the terminal UI:
//
//	Run()
//	 ├─> config.Load / prefs.Load
//	 ├─> openLog            text handler on log_file
//	 ├─> startDemo          (-demo) seeded authority on 127.0.0.1:0
//	 ├─> gallery.NewClient  request pacing from requests_per_second
//	 ├─> session.New        store, syncer, coordinator, lightbox, bridge
//	 ├─> LoadSpeakers, resolveScope, SwitchScope
//	 ├─> session.Start      push stream
//	 └─> ui.Run             blocks until quit
//
// The first scope is the -path flag, then default_path, then the last scope
// saved in prefs, then whatever GET /api/path returns. A failed first load
// is shown in the UI rather than aborting startup.
package app

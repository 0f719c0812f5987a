// Package config loads the cadsync configuration file.
//
// # Discovery
//
// Load uses the given path, or ~/.config/cadsync/config.toml when the path
// is blank. A missing file is not an error: the defaults are returned so the
// console starts against a local dispatch API without any setup.
//
// # Fields
//
//	api_url      = "https://cad.example.net"   # host:port or URL
//	officer_id   = "O1"                        # operator of this device
//	callsign     = "B14"                       # default callsign
//	patrol_group = "Collingwood"
//	sync_scope   = "patrol_group"              # "all" or "patrol_group"
//	poll_seconds = 15
//	log_file     = "~/.local/state/cadsync/cadsync.log"
//	log_level    = "info"
//	live_feed    = true
//
// Every field is optional. Blank strings and non-positive numbers fall back
// to defaults; paths get tilde expansion. Invalid TOML and an unknown
// sync_scope are errors.
package config

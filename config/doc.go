// Package config defines configuration for the awemescrape CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (AWEMESCRAPE_ prefix)
//   - YAML configuration file
//
// # Example
//
//	data_dir: data
//	quality: best
//	download_num: 0
//	concurrency: 3
//	min_valid_bytes: 512
//	state_file: state.json
//	timeout: 5s
//	retry:
//	  attempts: 6
//	  sleep_min: 1s
//	  sleep_max: 5s
//	  reset_every: 2
package config

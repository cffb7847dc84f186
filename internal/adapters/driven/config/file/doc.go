// Package file provides the TOML configuration store.
//
// The file is organised in sections ([source], [pager], [landing], ...) and
// exposed to the rest of the program as flat dot-notation keys such as
// "pager.page_size". Watch reports edits made to the file while a daemon runs.
package file

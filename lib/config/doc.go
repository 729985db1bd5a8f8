// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for dotmatrix.
//
// Configuration comes from a single file named by the --config flag or
// the DOTMATRIX_CONFIG environment variable ([Resolve]). When neither
// is set the built-in [Default] is used unchanged; there is no
// automatic file search.
//
// Values in the file are merged over the defaults. Path fields
// (logging.file, sync.filter_file) expand ${HOME}, ${XDG_STATE_HOME}
// and ${VAR:-default} patterns after loading.
//
// An optional sync filter may be supplied as a JSONC document (JSON
// with comments and trailing commas) and is read with [LoadSyncFilter].
package config

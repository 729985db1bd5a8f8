// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the dotmatrix binary.
//
// Release builds inject values with -ldflags:
//
//	go build -ldflags "-X github.com/dotmatrix-chat/dotmatrix/lib/version.Version=0.2.0"
//
// Development builds fall back to the VCS stamp recorded by the Go
// toolchain, when present.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time.
var (
	// Version is the semantic version.
	Version = "0.1.0-dev"

	// GitCommit is the short git SHA of the build.
	GitCommit = ""
)

// Commit returns the git SHA of the build, or "unknown".
func Commit() string {
	if GitCommit != "" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
		}
	}
	return "unknown"
}

// Info returns the string printed by --version.
func Info() string {
	return fmt.Sprintf("dotmatrix %s (%s, %s %s/%s)",
		Version, Commit(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

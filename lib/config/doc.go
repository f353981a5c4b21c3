// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads ldbfs configuration from YAML.
//
// A file is read from the --config flag (via [LoadFile]) or the
// LDBFS_CONFIG environment variable (via [Load]). Without either, the
// built-in [Default] applies and the database comes from the command
// line. Keys absent from a file keep their defaults, and command-line
// flags override file values.
//
// ${HOME} and ${VAR:-default} patterns are expanded in the database,
// mountpoint and bind password file paths after loading.
//
// [Config.SourceOptions] and [Config.ProviderConfig] translate the
// file into the options of package directory.
package config

// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package config loads the single process-level configuration the core
// exposes (spec §6 "Configuration"), plus the ambient knobs every
// long-running Erigon-style subsystem carries alongside it.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the process-level configuration. ExportLoggingArrayDataPath
// is the one option the spec mandates; the rest are ambient additions a
// real deployment needs (sampling rate, debug dispatch, buffering).
type Config struct {
	// ExportLoggingArrayDataPath is where exportProfiles writes its report.
	// Empty means export is a no-op (spec §6).
	ExportLoggingArrayDataPath string `toml:"export_logging_array_data_path"`

	// SampleDenominator is a 1-in-N sampling rate; 1 means sample
	// everything. It is loaded and defaulted here, but no package in this
	// module reads it.
	SampleDenominator uint32 `toml:"sample_denominator"`

	// DebugDispatch mirrors layout.DebugDispatch: when true, the operation
	// vtable dispatcher validates the array's class before every call.
	DebugDispatch bool `toml:"debug_dispatch"`

	// ExportBufferSize is a buffer size for the export report writer. No
	// package in this module reads it; export.WriteReport uses bufio's
	// default buffer size.
	ExportBufferSize int `toml:"export_buffer_size"`
}

// Default returns the configuration a fresh process starts with absent
// any file on disk.
func Default() Config {
	return Config{
		SampleDenominator: 100,
		ExportBufferSize:  64 * 1024,
	}
}

// Load reads and parses a TOML configuration file at path, starting from
// Default() so an incomplete file still yields sane values for the
// fields it omits.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

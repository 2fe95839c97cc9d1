// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/logger"
)

const (
	LogFileEnvVar   = "LOG_FILE"
	LogLevelEnvVar  = "LOG_LEVEL"
	LogFormatEnvVar = "LOG_FORMAT"
)

// initLogger installs the logger. Priority: CLI flag > env var > config
// file > default. The returned func closes the log file, if any.
func initLogger(cliLevel, cliFile, cliFormat string, cfg *config.LoggingConfig) (func(), error) {
	pick := func(flag, env, fromConfig string) string {
		if flag != "" {
			return flag
		}
		if v := os.Getenv(env); v != "" {
			return v
		}
		return fromConfig
	}

	var logCfg config.LoggingConfig
	if cfg != nil {
		logCfg = *cfg
	}
	levelName := pick(cliLevel, LogLevelEnvVar, logCfg.Level)
	file := pick(cliFile, LogFileEnvVar, logCfg.File)
	format := pick(cliFormat, LogFormatEnvVar, logCfg.Format)
	if format == "" {
		format = "simple"
	}

	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	if file == "" {
		logger.Init(level, os.Stderr, format)
		return func() {}, nil
	}
	f, closeFn, err := logger.OpenLogFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.Init(level, f, format)
	return closeFn, nil
}

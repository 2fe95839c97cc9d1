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
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	File        string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`
	Format      string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved)."`
}

// Run loads the file through the same loader as serve, which applies
// defaults and validates every section.
func (c *ValidateCmd) Run(cli *CLI) error {
	out := cli.stdout()
	cfg, loader, err := config.LoadConfigFile(context.Background(), c.File)
	if err != nil {
		printResult(out, c.Format, c.File, err)
		return fmt.Errorf("config validation failed")
	}
	defer loader.Close()

	if c.PrintConfig {
		return printExpandedConfig(out, c.Format, c.File, cfg)
	}
	printResult(out, c.Format, c.File, nil)
	return nil
}

type validationOutput struct {
	Valid bool   `json:"valid"`
	File  string `json:"file"`
	Error string `json:"error,omitempty"`
}

func printResult(out io.Writer, format, file string, err error) {
	switch format {
	case "json":
		res := validationOutput{Valid: err == nil, File: file}
		if err != nil {
			res.Error = err.Error()
		}
		_ = printJSON(out, res)
	case "verbose":
		if err != nil {
			fmt.Fprintf(out, "Configuration Error\n===================\n\nFile:   %s\nError:  %s\n", file, err)
			return
		}
		fmt.Fprintf(out, "Configuration Valid\n===================\n\nFile:   %s\nStatus: OK\n", file)
	default:
		if err != nil {
			fmt.Fprintf(out, "%s: %s\n", file, err)
			return
		}
		fmt.Fprintf(out, "%s: valid\n", file)
	}
}

func printExpandedConfig(out io.Writer, format, file string, cfg *config.Config) error {
	if format == "json" {
		return printJSON(out, cfg)
	}
	fmt.Fprintf(out, "# Expanded configuration from: %s\n\n", file)
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config as YAML: %w", err)
	}
	return enc.Close()
}

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

// Command claimflow runs the claim processing agents.
//
// Usage:
//
//	claimflow serve --config claimflow.yaml
//	claimflow process claim.json --index policy.pdf --policy POL-100
//	claimflow mcp
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/config"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/runtime"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP server."`
	Process  ProcessCmd  `cmd:"" help:"Process one claim and print the result."`
	Index    IndexCmd    `cmd:"" help:"Index policy documents into the vector store."`
	Analyze  AnalyzeCmd  `cmd:"" help:"Extract fields from a claim document."`
	Tools    ToolsCmd    `cmd:"" help:"List or call the agent tools."`
	MCP      MCPCmd      `cmd:"" name:"mcp" help:"Serve the agent tools over MCP on stdio."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Print the JSON Schema of the configuration."`

	Config    string `short:"c" help:"Path to config file (empty = built-in defaults)." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`

	out io.Writer `kong:"-"`
}

func (c *CLI) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

// setup loads the configuration and installs the logger. The returned
// cleanup closes the loader and the log file.
func (c *CLI) setup(ctx context.Context, opts ...config.LoaderOption) (*config.Config, *config.Loader, func(), error) {
	cfg := config.Default()
	var loader *config.Loader
	if c.Config != "" {
		loaded, l, err := config.LoadConfigFile(ctx, c.Config, opts...)
		if err != nil {
			return nil, nil, nil, err
		}
		cfg, loader = loaded, l
	}

	closeLog, err := initLogger(c.LogLevel, c.LogFile, c.LogFormat, &cfg.Logging)
	if err != nil {
		if loader != nil {
			_ = loader.Close()
		}
		return nil, nil, nil, err
	}
	cleanup := func() {
		if loader != nil {
			_ = loader.Close()
		}
		closeLog()
	}
	return cfg, loader, cleanup, nil
}

// withRuntime runs fn against a runtime built from the loaded config.
func (c *CLI) withRuntime(ctx context.Context, fn func(*runtime.Runtime) error) error {
	cfg, _, cleanup, err := c.setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	rt, err := runtime.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer rt.Close()
	return fn(rt)
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}
	return "dev"
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	fmt.Fprintf(cli.stdout(), "claimflow version %s\n", version())
	return nil
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("claimflow"),
		kong.Description("Multi-agent insurance claim processing"),
		kong.UsageOnError(),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	parser, err := newParser(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

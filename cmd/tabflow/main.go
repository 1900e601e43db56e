// Command tabflow runs a single graph document to completion against a
// directory of input files and prints the resulting run report as JSON.
//
// Usage:
//
//	tabflow [flags] <graph.json>
//
// Flags:
//
//	-upload-dir string
//	    Directory the file resolver scans for source file_ids (default "./data/uploads")
//	-data-dir string
//	    Directory output/output_csv nodes write into (default "./data/output")
//	-enable-code
//	    Register the opt-in "code" operator (default false)
//	-timeout duration
//	    Overall run timeout; 0 means no timeout (default 0)
//
// Example:
//
//	# Execute a saved graph against local fixtures
//	tabflow -upload-dir ./testdata/uploads -data-dir ./out graph.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tabflowio/tabflow/pkg/config"
	"github.com/tabflowio/tabflow/pkg/engine"
	"github.com/tabflowio/tabflow/pkg/graph"
	"github.com/tabflowio/tabflow/pkg/llm"
	"github.com/tabflowio/tabflow/pkg/logging"
	"github.com/tabflowio/tabflow/pkg/operator"
	"github.com/tabflowio/tabflow/pkg/resolver"
)

func main() {
	uploadDir := flag.String("upload-dir", "", "Directory the file resolver scans for source file_ids")
	dataDir := flag.String("data-dir", "", "Directory output/output_csv nodes write into")
	enableCode := flag.Bool("enable-code", false, "Register the opt-in code operator")
	timeout := flag.Duration("timeout", 0, "Overall run timeout; 0 means no timeout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: tabflow [flags] <graph.json>")
		os.Exit(2)
	}

	cfg := config.Default()
	if *uploadDir != "" {
		cfg.UploadDir = *uploadDir
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	cfg.EnableCodeNode = *enableCode
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "creating data dir: %v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading graph document: %v\n", err)
		os.Exit(1)
	}
	doc, err := graph.Parse(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing graph document: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.DefaultConfig())
	registry := operator.BuildRegistry(cfg, operator.FileSink{Dir: cfg.DataDir})
	res := resolver.NewDirResolver(cfg.UploadDir)
	var chat llm.ChatClient
	if cfg.LLMAPIKey != "" {
		chat = llm.New(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMRequestTimeout)
	}
	runner := engine.New(registry, res, chat, cfg, logger)

	ctx := context.Background()
	var cancel context.CancelFunc
	if *timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	start := time.Now()
	report, err := runner.Run(ctx, doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "graph rejected: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "encoding report: %v\n", err)
		os.Exit(1)
	}

	if !report.Success {
		fmt.Fprintf(os.Stderr, "run failed after %s: %s\n", time.Since(start).Round(time.Millisecond), report.Error)
		os.Exit(1)
	}
}

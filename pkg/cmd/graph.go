package cmd

import (
	"flag"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"colmet/pkg/graphing"
	"colmet/pkg/utils"
)

// Graph renders a stored file as an HTML page of charts.
func Graph(args []string) {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	var outputDir string
	fs.StringVar(&outputDir, "output", "", "Output directory for graphs")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)
	utils.InitLogging(*verbose)

	if fs.NArg() < 1 {
		log.Fatal("Input file required. Usage: colmet graph [flags] <input-file>")
	}

	inputFile := fs.Arg(0)
	if _, err := os.Stat(inputFile); err != nil {
		log.Fatalf("Input file not found: %s", inputFile)
	}
	if outputDir == "" {
		base := filepath.Base(inputFile)
		outputDir = strings.TrimSuffix(base, filepath.Ext(base)) + "_graphs"
	}

	log.Infof("Generating graphs from %s", inputFile)
	out, err := graphing.GenerateGraphsFromFile(inputFile, outputDir, mustRegistry())
	if err != nil {
		log.Fatalf("Failed to generate graphs: %v", err)
	}
	log.Infof("Successfully generated %s", out)
}

// bypassfuzzer - HTTP access-control bypass fuzzer
// Mutates a baseline request with header, path, verb and protocol tricks
// and reports which variants slip past a 401/403.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

// CLI flags
var (
	configFile   string
	targetURL    string
	method       string
	headers      []string
	body         string
	rawRequest   string
	secure       bool
	attacks      []string
	rps          int
	timeout      int
	outputFile   string
	outputDir    string
	reportFormat string
	templateFile string
	severity     string
	onlyAttack   string
	oobDomain    string
	payloadDir   string
	fuzzCookies  bool
	noSmart      bool
	hideStatus   []int
	insecure     bool
	verbose      bool
	quiet        bool
	noColor      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bypassfuzzer",
		Short: "bypassfuzzer - HTTP access-control bypass fuzzer",
		Long: `bypassfuzzer replays a baseline request with many small
mutations and shows the responses that differ from the denial.

Attacks:
  header, path, verb, param, trailingdot, trailingslash, protocol,
  case, cookie, extension, contenttype, encoding`,
		SilenceUsage: true,
		RunE:         runBypass,
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to config file (YAML)")
	flags.StringVarP(&targetURL, "url", "u", "", "Target URL")
	flags.StringVarP(&method, "method", "X", "", "Baseline request method")
	flags.StringArrayVarP(&headers, "header", "H", nil, `Baseline header "Name: value" (repeatable)`)
	flags.StringVarP(&body, "data", "d", "", "Baseline request body")
	flags.StringVarP(&rawRequest, "request", "r", "", "Path to a captured raw HTTP request")
	flags.BoolVar(&secure, "secure", false, "Use https for a raw request")
	flags.StringSliceVarP(&attacks, "attacks", "a", nil, "Attacks to run (default all)")
	flags.IntVar(&rps, "rate", 0, "Requests per second limit (0 = unlimited)")
	flags.IntVar(&timeout, "timeout", 10, "Request timeout in seconds")
	flags.StringVarP(&outputFile, "output", "o", "", "Report file path")
	flags.StringVar(&outputDir, "report-dir", "", "Write a timestamped report into this directory")
	flags.StringVarP(&reportFormat, "format", "f", "", "Report format: json, jsonl, html, markdown")
	flags.StringVar(&templateFile, "template", "", "HTML report template file")
	flags.StringVar(&severity, "severity", "", "Report only findings of this severity: high, medium, low, info")
	flags.StringVar(&onlyAttack, "only-attack", "", `Report only findings of this attack type (e.g. "Header")`)
	flags.StringVar(&oobDomain, "oob", "", "Out-of-band interaction domain")
	flags.StringVar(&payloadDir, "payloads", "", "Directory with payload lists")
	flags.BoolVar(&fuzzCookies, "fuzz-cookies", false, "Also mutate cookies already on the request")
	flags.BoolVar(&noSmart, "no-smart", false, "Show repeated response patterns")
	flags.IntSliceVar(&hideStatus, "hide-status", nil, "Status codes to hide")
	flags.BoolVarP(&insecure, "insecure", "k", false, "Skip TLS verification")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Only print the summary")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bypassfuzzer version %s\n", version)
		},
	}
	rootCmd.AddCommand(versionCmd, newLabCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

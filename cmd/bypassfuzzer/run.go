package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxfuzzer/bypassfuzzer/internal/analyzer"
	"github.com/fluxfuzzer/bypassfuzzer/internal/attack"
	"github.com/fluxfuzzer/bypassfuzzer/internal/config"
	"github.com/fluxfuzzer/bypassfuzzer/internal/fuzzer"
	"github.com/fluxfuzzer/bypassfuzzer/internal/logging"
	"github.com/fluxfuzzer/bypassfuzzer/internal/ratelimit"
	"github.com/fluxfuzzer/bypassfuzzer/internal/report"
	"github.com/fluxfuzzer/bypassfuzzer/internal/requester"
	"github.com/fluxfuzzer/bypassfuzzer/internal/ui"
)

// protocolWorkers bounds goroutines left behind by stuck protocol requests.
const protocolWorkers = 4

func runBypass(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Target.URL == "" && cfg.Target.RawRequest == "" {
		cmd.Usage()
		return errors.New("--url, --request or a config target is required")
	}

	log := logging.NewConsole(cfg.Output.Verbose)

	baseline, err := cfg.Baseline()
	if err != nil {
		return err
	}
	baseline, err = fuzzer.ResolveBaseline(baseline)
	if err != nil {
		return err
	}

	client := requester.NewClient(&requester.ClientOptions{
		Timeout:             cfg.Engine.Timeout,
		MaxConnsPerHost:     cfg.Engine.MaxConnsPerHost,
		MaxIdleConnDuration: 10 * time.Second,
		SkipTLSVerify:       cfg.Engine.Insecure,
	})
	defer client.Close()

	pool, err := requester.NewTimeoutPool(protocolWorkers)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	strategies, err := attack.Build(cfg.EnabledAttacks(), attack.Options{
		FuzzExistingCookies: cfg.Payloads.FuzzExistingCookies,
		ProtocolTimeout:     cfg.Engine.ProtocolTimeout,
		Runner:              pool,
	})
	if err != nil {
		return err
	}

	limiter := ratelimit.New(ratelimit.RealClock{}, log)
	limiter.Configure(cfg.Rate.RPS, cfg.Rate.ThrottleCodes, cfg.Rate.AutoThrottle)
	if cfg.Rate.MaxDelay > 0 {
		limiter.SetMaxDelay(cfg.Rate.MaxDelay)
	}

	smart := analyzer.NewSmartFilter(cfg.Filter.SmartRepeats)
	smart.SetEnabled(cfg.Filter.Smart)
	results := analyzer.NewResultLog(smart, analyzer.NewManualFilter(analyzer.ManualSettings{
		HideStatus:  cfg.Filter.HideStatus,
		ShowStatus:  cfg.Filter.ShowStatus,
		MinLength:   cfg.Filter.MinLength,
		MaxLength:   cfg.Filter.MaxLength,
		HideLengths: cfg.Filter.HideLengths,
		ShowLengths: cfg.Filter.ShowLengths,
		ContentType: cfg.Filter.ContentType,
		Payload:     cfg.Filter.Payload,
	}))

	printer := ui.NewPrinter(os.Stdout, results, cfg.Output.Color)
	var sink fuzzer.Sink = printer
	if cfg.Output.Quiet {
		sink = results
	}

	o := fuzzer.New(client, &fuzzer.Options{
		StartGrace:     cfg.Engine.StartGrace,
		InterruptGrace: cfg.Engine.InterruptGrace,
		CleanupWait:    cfg.Engine.CleanupWait,
		Limiter:        limiter,
		Smart:          smart,
		Log:            log,
		Payloads:       cfg.PayloadSource(),
		OOB:            cfg.OOB(),
	})

	if !cfg.Output.Quiet {
		if cfg.Output.Color {
			fmt.Println(ui.BannerStyled())
		}
		fmt.Println(ui.RenderLabelValue("Target", baseline.Method+" "+baseline.URL))
		fmt.Println(ui.RenderLabelValue("Attacks", fmt.Sprint(cfg.EnabledAttacks())))
		fmt.Println()
	}

	start := time.Now()
	if err := o.Start(baseline, strategies, sink); err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := o.Wait(ctx); err != nil {
		log.Info("interrupted, stopping run")
		o.Stop()
		waitCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.CleanupWait)
		o.Wait(waitCtx) //nolint:errcheck
		cancel()
	}
	elapsed := time.Since(start)

	printer.Summary(elapsed)
	if stats := o.Stats(); stats.Panicked > 0 {
		log.Warn("some attacks aborted", "count", stats.Panicked)
	}

	if err := writeReport(cfg, baseline.URL, results, elapsed); err != nil {
		log.Error("report failed", err)
		return err
	}
	o.Cleanup()
	return nil
}

func writeReport(cfg *config.Config, target string, results *analyzer.ResultLog, elapsed time.Duration) error {
	if cfg.Output.File == "" && cfg.Output.Dir == "" {
		return nil
	}
	rep := report.FromResults("Access Control Bypass Report", target, results)
	rep.Version = version
	rep.Statistics.Duration = elapsed
	rep.Narrow(report.Severity(cfg.Output.Severity), cfg.Output.Attack)

	format := cfg.Output.Format
	if format == "" {
		format = "json"
	}
	m, err := newReportManager(cfg)
	if err != nil {
		return err
	}
	if cfg.Output.File != "" {
		if err := m.WriteFile(rep, format, cfg.Output.File); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "[*] Report written to %s\n", cfg.Output.File)
	}
	if cfg.Output.Dir != "" {
		path, err := m.Generate(rep, format)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "[*] Report written to %s\n", path)
	}
	return nil
}

// newReportManager returns a manager whose html generator uses the
// configured template file, if any.
func newReportManager(cfg *config.Config) (*report.Manager, error) {
	m := report.NewManager(cfg.Output.Dir)
	if cfg.Output.Template == "" {
		return m, nil
	}
	data, err := os.ReadFile(cfg.Output.Template)
	if err != nil {
		return nil, fmt.Errorf("read report template: %w", err)
	}
	gen, err := report.CustomHTMLGenerator(string(data))
	if err != nil {
		return nil, err
	}
	m.RegisterGenerator("html", gen)
	return m, nil
}

// loadConfig reads the config file, if any, and overlays every flag the
// user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("url") {
		cfg.Target.URL = targetURL
	}
	if changed("method") {
		cfg.Target.Method = method
	}
	if changed("header") {
		cfg.Target.Headers = headers
	}
	if changed("data") {
		cfg.Target.Body = body
	}
	if changed("request") {
		cfg.Target.RawRequest = rawRequest
	}
	if changed("secure") {
		cfg.Target.Secure = secure
	}
	if changed("attacks") {
		cfg.Attacks = attacks
	}
	if changed("rate") {
		cfg.Rate.RPS = rps
	}
	if changed("timeout") {
		cfg.Engine.Timeout = time.Duration(timeout) * time.Second
	}
	if changed("output") {
		cfg.Output.File = outputFile
	}
	if changed("report-dir") {
		cfg.Output.Dir = outputDir
	}
	if changed("format") {
		cfg.Output.Format = reportFormat
	}
	if changed("template") {
		cfg.Output.Template = templateFile
	}
	if changed("severity") {
		cfg.Output.Severity = severity
	}
	if changed("only-attack") {
		cfg.Output.Attack = onlyAttack
	}
	if changed("oob") {
		cfg.Payloads.OOBDomain = oobDomain
	}
	if changed("payloads") {
		cfg.Payloads.Dir = payloadDir
	}
	if changed("fuzz-cookies") {
		cfg.Payloads.FuzzExistingCookies = fuzzCookies
	}
	if changed("no-smart") {
		cfg.Filter.Smart = !noSmart
	}
	if changed("hide-status") {
		cfg.Filter.HideStatus = hideStatus
	}
	if changed("insecure") {
		cfg.Engine.Insecure = insecure
	}
	if changed("verbose") {
		cfg.Output.Verbose = verbose
	}
	if changed("quiet") {
		cfg.Output.Quiet = quiet
	}
	if changed("no-color") {
		cfg.Output.Color = !noColor
	}
}

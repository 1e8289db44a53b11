package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/jihwankim/fzgo/fz"
	"github.com/jihwankim/fzgo/pkg/calculator"
	"github.com/jihwankim/fzgo/pkg/cancel"
	"github.com/jihwankim/fzgo/pkg/config"
	"github.com/jihwankim/fzgo/pkg/dispatcher"
	"github.com/jihwankim/fzgo/pkg/extract"
	"github.com/jihwankim/fzgo/pkg/logging"
	"github.com/jihwankim/fzgo/pkg/result"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Compile, dispatch, and assemble a full simulation run (fzr)",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().String("template", "", "path to the template tree")
	runCmd.Flags().String("model", "", "path to a model YAML file")
	runCmd.Flags().String("values", "", "path to a variables/design YAML file")
	runCmd.Flags().StringArray("set", []string{}, "override a variable's value list (e.g. --set x=1,2,3)")
	runCmd.Flags().String("results", "", "output directory for results")
	runCmd.Flags().StringArray("calculator", []string{}, "calculator URI (repeatable, comma-separated); e.g. sh:///bash script.sh")
	runCmd.Flags().String("format", "text", "result table render format: text, json, csv")
	runCmd.Flags().String("ssh-key", "", "path to an SSH private key (falls back to SSH_AUTH_SOCK agent)")
	runCmd.Flags().String("stop-file", "", "path polled for existence; its appearance cancels the run")
	runCmd.Flags().String("metrics-addr", "", "if set, serve Prometheus case-completion metrics at http://<addr>/metrics")
	runCmd.MarkFlagRequired("template")
	runCmd.MarkFlagRequired("values")
	runCmd.MarkFlagRequired("results")
	runCmd.MarkFlagRequired("calculator")
}

func runRun(cmd *cobra.Command, args []string) error {
	templatePath, _ := cmd.Flags().GetString("template")
	modelPath, _ := cmd.Flags().GetString("model")
	valuesPath, _ := cmd.Flags().GetString("values")
	resultsDir, _ := cmd.Flags().GetString("results")
	calcFlags, _ := cmd.Flags().GetStringArray("calculator")
	setFlags, _ := cmd.Flags().GetStringArray("set")
	format, _ := cmd.Flags().GetString("format")
	sshKeyPath, _ := cmd.Flags().GetString("ssh-key")
	stopFile, _ := cmd.Flags().GetString("stop-file")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	m, err := loadModel(modelPath)
	if err != nil {
		return err
	}
	values, groupVars, rows, rowOrder, err := loadValues(valuesPath)
	if err != nil {
		return err
	}
	if len(setFlags) > 0 {
		applyValueOverrides(values, parseSetFlags(setFlags))
	}

	calculators := splitCalculators(calcFlags)

	ctx := context.Background()
	ctrl := cancel.New(cancel.Config{StopFile: stopFile, EnableSignalHandlers: true, Logger: logger})
	ctrl.Start(ctx)

	backends, err := buildBackends(calculators, cfg, sshKeyPath)
	if err != nil {
		return err
	}

	metrics := startMetricsServer(metricsAddr, logger)

	table, err := fz.Run(ctx, templatePath, values, m, calculators, resultsDir, fz.RunOptions{
		MaxRetries: cfg.MaxRetries,
		MaxWorkers: cfg.MaxWorkers,
		ShellPath:  cfg.ShellPath,
		Backends:   backends,
		Cancel:     ctrl,
		Logger:     logger,
		Metrics:    metrics,
		CompileOpts: fz.CompileOptions{
			GroupVariables: groupVars,
			Rows:           rows,
			RowOrder:       rowOrder,
		},
		Callbacks: dispatcher.Callbacks{
			OnProgress: func(done, total int) {
				fmt.Fprintf(os.Stderr, "\rprogress: %d/%d", done, total)
				if done == total {
					fmt.Fprintln(os.Stderr)
				}
			},
		},
	})
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmtr := result.NewFormatter(logger)
	out, err := fmtr.Render(table, resultFormat(format))
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// startMetricsServer, when addr is non-empty, registers a fresh Prometheus
// registry, serves it at http://addr/metrics in the background, and
// returns a Metrics recorder for the dispatcher to record into. Returns
// nil when addr is empty, leaving metrics recording off.
func startMetricsServer(addr string, logger *logging.Logger) *dispatcher.Metrics {
	if addr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	m := dispatcher.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "error", err.Error())
		}
	}()
	return m
}

func resultFormat(s string) result.Format {
	switch strings.ToLower(s) {
	case "json":
		return result.FormatJSON
	case "csv":
		return result.FormatCSV
	default:
		return result.FormatText
	}
}

// buildBackends constructs only the backends whose scheme actually appears
// in calculators, so a local-only run never needs an SSH agent available.
func buildBackends(calculators []string, cfg config.Config, sshKeyPath string) (fz.Backends, error) {
	var b fz.Backends
	resolver := extract.NewShellResolver(cfg.ShellPath)

	schemes := map[string]bool{}
	for _, raw := range calculators {
		u, err := calculator.ParseURI(raw)
		if err != nil {
			return fz.Backends{}, fmt.Errorf("parse calculator %q: %w", raw, err)
		}
		schemes[u.Scheme] = true
	}

	if schemes["sh"] {
		cwd, err := os.Getwd()
		if err != nil {
			return fz.Backends{}, err
		}
		b.Local = calculator.NewLocalBackend(resolver, cwd)
	}
	if schemes["cache"] {
		b.Cache = calculator.NewCacheBackend()
	}
	if schemes["funz"] {
		b.Funz = calculator.NewFunzBackend(10 * time.Second)
	}
	if schemes["ssh"] {
		auth, err := sshAuthMethod(sshKeyPath)
		if err != nil {
			return fz.Backends{}, fmt.Errorf("ssh auth: %w", err)
		}
		keepalive := time.Duration(cfg.SSHKeepaliveSeconds) * time.Second
		b.SSH = calculator.NewSSHBackend(auth, cfg.SSHAutoAcceptHostKeys, keepalive, resolver)
	}
	return b, nil
}

// sshAuthMethod prefers an explicit private key file, falling back to the
// running SSH agent (SSH_AUTH_SOCK).
func sshAuthMethod(keyPath string) (ssh.AuthMethod, error) {
	if keyPath != "" {
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, err
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse private key %s: %w", keyPath, err)
		}
		return ssh.PublicKeys(signer), nil
	}

	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("no --ssh-key given and SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connect to ssh agent: %w", err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

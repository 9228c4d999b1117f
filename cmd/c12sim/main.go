// Command c12sim runs one OpenQASM circuit on the C12 simulator and prints
// its counts and final statevector.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/adapter/qiskit"
	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/config"
	"github.com/c12qe/c12sim-go/internal/qasm"
	"github.com/c12qe/c12sim-go/internal/result"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "c12sim:", err)
		os.Exit(1)
	}
}

// options are the flags that do not map onto a config key.
type options struct {
	circuit  string
	file     string
	shots    int
	iniNoise bool
	params   string
}

func newFlagSet(v *viper.Viper, opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("c12sim", pflag.ContinueOnError)
	fs.StringVarP(&opts.circuit, "qasm", "q", "", "OpenQASM 2 circuit text")
	fs.StringVarP(&opts.file, "file", "f", "", "read the circuit from a file")
	fs.IntVarP(&opts.shots, "shots", "s", qiskit.DefaultShots, "number of shots")
	fs.BoolVar(&opts.iniNoise, "ininoise", false, "start from a noisy initial state")
	fs.StringVar(&opts.params, "physical-params", "", "physical parameters as a JSON object")

	fs.String("host", "", "simulator host")
	fs.String("port", "", "simulator port")
	fs.String("protocol", "", "http or https")
	fs.String("token", "", "API token")
	fs.StringP("backend", "b", "", "backend name")
	fs.Duration("timeout", 0, "stop waiting for the result after this long (0 waits forever)")
	fs.Duration("wait", 0, "interval between status polls")
	fs.BoolP("verbose", "v", false, "log every request")

	for key, flag := range map[string]string{
		"C12_HOST_URL":     "host",
		"C12_PORT":         "port",
		"C12_PROTOCOL":     "protocol",
		"C12_TOKEN":        "token",
		"C12_BACKEND":      "backend",
		"C12_POLL_TIMEOUT": "timeout",
		"C12_POLL_WAIT":    "wait",
		"C12_VERBOSE":      "verbose",
	} {
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
	return fs
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	v := viper.New()
	var opts options
	fs := newFlagSet(v, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if cfg.C12.Verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer logger.Sync()
	}

	circuit, err := loadCircuit(opts, fs.Args())
	if err != nil {
		return err
	}

	client, err := api.NewClient(cfg.C12.BaseURL(), cfg.C12.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.C12.RequestTimeout),
	)
	if err != nil {
		return err
	}

	backend, err := qiskit.NewProvider(client, logger).GetBackend(ctx, cfg.C12.Backend)
	if err != nil {
		return err
	}
	jobs, err := backend.Run(ctx, []string{circuit}, qiskit.RunOptions{
		Shots:          opts.shots,
		IniNoise:       opts.iniNoise,
		PhysicalParams: opts.params,
	})
	if err != nil {
		return err
	}

	job := jobs[0]
	fmt.Fprintf(stdout, "job %s submitted to %s\n", job.ID(), backend.Name())

	res, err := job.Result(ctx, api.PollOptions{Timeout: cfg.C12.PollTimeout, Wait: cfg.C12.PollWait})
	if err != nil {
		return err
	}
	printResult(stdout, res)
	return nil
}

// loadCircuit picks the circuit from --qasm, --file, a positional path or
// falls back to a Bell pair.
func loadCircuit(opts options, args []string) (string, error) {
	switch {
	case opts.circuit != "":
		return opts.circuit, nil
	case opts.file != "":
		return readFile(opts.file)
	case len(args) > 0:
		return readFile(args[0])
	}
	return qasm.NewBuilder(2, 2).Gate("h", 0).Gate("cx", 0, 1).MeasureAll().Build(), nil
}

func readFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read circuit: %w", err)
	}
	return string(raw), nil
}

func printResult(w io.Writer, res *qiskit.Result) {
	counts := res.Counts()
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, "counts:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
	fmt.Fprintln(w, "statevector:")
	for i, amp := range res.Statevector() {
		fmt.Fprintf(w, "  [%d] %s\n", i, result.FormatComplex(amp))
	}
}

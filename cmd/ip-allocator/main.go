// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
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
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ligato/cn-infra/logging"
	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/kubermesh/ip-allocator/plugins/bootstrap"
	"github.com/kubermesh/ip-allocator/plugins/kvstore"
)

const (
	defaultEtcdCfgFile = "/etc/etcd/etcd.conf"
	defaultTimeout     = time.Minute
)

var logger logging.Logger // global logger

func init() {
	logger = logrus.DefaultLogger()
}

type options struct {
	configFile      string
	etcdConfigFile  string
	logLevel        string
	targetDir       string
	metricsTextfile string
	timeout         time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "ip-allocator",
		Short:         "Node network bootstrap: IPv6 subnets from the hardware address, IPv4 address from etcd",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLogLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logger.SetLevel(level)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", bootstrap.DefaultConfigFile, "location of the ip-allocator config file")
	flags.StringVar(&opts.etcdConfigFile, "etcd-config", defaultEtcdCfgFile, "location of the ETCD config file")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.DurationVar(&opts.timeout, "timeout", defaultTimeout, "limit of the whole operation")

	runCmd := &cobra.Command{
		Use:   "run <machine-identity>",
		Short: "Derive node networks, allocate the IPv4 address and write the config artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, args[0], cmd.OutOrStdout())
		},
	}
	runCmd.Flags().StringVar(&opts.targetDir, "target-dir", "", "directory for the config artifacts (overrides the config file)")
	runCmd.Flags().StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write allocation metrics into this file (node_exporter textfile format)")

	deriveCmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the hardware identifier and the derived node networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return derive(opts, cmd.OutOrStdout())
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [machine-identity]",
		Short: "Print the IPv4 address allocated for the machine, or all allocations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := ""
			if len(args) == 1 {
				identity = args[0]
			}
			return show(opts, identity, cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(runCmd, deriveCmd, showCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

// run performs the full bootstrap.
func run(opts *options, identity string, out io.Writer) error {
	cfg, err := bootstrap.LoadConfig(opts.configFile)
	if err != nil {
		return err
	}
	if opts.targetDir != "" {
		cfg.TargetDir = opts.targetDir
	}

	ctx, cancel := newContext(opts)
	defer cancel()

	db, err := connect(ctx, opts)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	b := bootstrap.NewBootstrap(bootstrap.UseDeps(func(deps *bootstrap.Deps) {
		deps.Log = logger
		deps.Config = cfg
		deps.DB = db
		deps.Registerer = registry
	}))

	result, err := b.Run(ctx, identity)

	logMetrics(registry)
	if opts.metricsTextfile != "" {
		if mErr := prometheus.WriteToTextfile(opts.metricsTextfile, registry); mErr != nil {
			logger.Warnf("Failed to write metrics into %s: %v", opts.metricsTextfile, mErr)
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "identifier:   %s\n", result.Identifier)
	fmt.Fprintf(out, "node network: %v\n", result.Hierarchy.Node)
	fmt.Fprintf(out, "ipv4 address: %v\n", result.IPv4Address)
	return nil
}

// derive prints the derived node networks. The store is contacted only when
// the IPv6 base network is not set in the config file.
func derive(opts *options, out io.Writer) error {
	cfg, err := bootstrap.LoadConfig(opts.configFile)
	if err != nil {
		return err
	}

	ctx, cancel := newContext(opts)
	defer cancel()

	var db kvstore.Broker
	if cfg.IPv6BaseNetwork == "" {
		conn, err := connect(ctx, opts)
		if err != nil {
			return err
		}
		defer conn.Close()
		db = conn
	}

	b := bootstrap.NewBootstrap(bootstrap.UseDeps(func(deps *bootstrap.Deps) {
		deps.Log = logger
		deps.Config = cfg
		if db != nil {
			deps.DB = db
		}
	}))

	result, err := b.Derive(ctx)
	if err != nil {
		return err
	}

	printHierarchy(out, result)
	return nil
}

func printHierarchy(out io.Writer, result *bootstrap.Result) {
	h := result.Hierarchy
	w := tabwriter.NewWriter(out, 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, "identifier\t%s\n", result.Identifier)
	fmt.Fprintf(w, "node\t%v\n", h.Node)
	fmt.Fprintf(w, "host\t%v\n", h.Host)
	fmt.Fprintf(w, "pod\t%v\n", h.Pod)
	fmt.Fprintf(w, "vip\t%v\n", h.VIP)
	fmt.Fprintf(w, "host address\t%v\n", h.HostAddress)
	fmt.Fprintf(w, "overlay address\t%v\n", h.OverlayAddress)
	for i, cluster := range h.Cluster {
		fmt.Fprintf(w, "cluster%d\t%v\n", i, cluster)
	}
	w.Flush()
}

// show prints the allocation of the given machine, or all allocations
// for an empty identity.
func show(opts *options, identity string, out io.Writer) error {
	cfg, err := bootstrap.LoadConfig(opts.configFile)
	if err != nil {
		return err
	}
	ctx, cancel := newContext(opts)
	defer cancel()

	db, err := connect(ctx, opts)
	if err != nil {
		return err
	}
	defer db.Close()

	b := bootstrap.NewBootstrap(bootstrap.UseDeps(func(deps *bootstrap.Deps) {
		deps.Log = logger
		deps.Config = cfg
		deps.DB = db
	}))

	if identity == "" {
		allocations, err := b.Allocations(ctx)
		if err != nil {
			return err
		}
		for _, alloc := range allocations {
			fmt.Fprintln(out, alloc)
		}
		return nil
	}

	ip, found, err := b.Show(ctx, identity)
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("no address allocated for %s", identity)
	}
	fmt.Fprintln(out, ip)
	return nil
}

// logMetrics prints the collected counters at debug level.
func logMetrics(g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		logger.Warnf("Failed to gather metrics: %v", err)
		return
	}
	for _, family := range families {
		if family.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range family.GetMetric() {
			logger.Debugf("%s%s = %v", family.GetName(), labels(m), m.GetCounter().GetValue())
		}
	}
}

func labels(m *dto.Metric) string {
	if len(m.GetLabel()) == 0 {
		return ""
	}
	var pairs []string
	for _, label := range m.GetLabel() {
		pairs = append(pairs, fmt.Sprintf("%s=%q", label.GetName(), label.GetValue()))
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

// connect opens the etcd connection; ctx bounds dialing and every later call.
func connect(ctx context.Context, opts *options) (kvstore.Broker, error) {
	etcdCfg, err := kvstore.LoadEtcdConfig(opts.etcdConfigFile)
	if err != nil {
		return nil, err
	}
	conn, err := kvstore.ConnectEtcd(ctx, etcdCfg, logger)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// newContext returns context cancelled by timeout or by a termination signal.
func newContext(opts *options) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func parseLogLevel(level string) (logging.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logging.DebugLevel, nil
	case "info", "":
		return logging.InfoLevel, nil
	case "warn", "warning":
		return logging.WarnLevel, nil
	case "error":
		return logging.ErrorLevel, nil
	}
	return logging.InfoLevel, errors.Errorf("unknown log level %q", level)
}

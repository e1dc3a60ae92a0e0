// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/observability"
)

// InstanceStatus holds the probe results for a running accountd.
type InstanceStatus struct {
	Addr   string            `json:"addr"`
	Live   bool              `json:"live"`
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	addr       string
	jsonOutput bool
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	sc := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running accountd",
		Long: `Query the health endpoints of a running accountd and report whether it
is live and ready, with the result of each readiness check.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sc.addr == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				sc.addr = cfg.MetricsAddr
			}
			return runStatus(cmd, sc)
		},
	}

	cmd.Flags().StringVar(&sc.addr, "addr", "", "observability address (default: metrics_addr from config)")
	cmd.Flags().BoolVar(&sc.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&sc.timeout, "timeout", 2*time.Second, "probe timeout")

	return cmd
}

func runStatus(cmd *cobra.Command, sc *statusConfig) error {
	if sc.addr == "" {
		return oops.Code("CONFIG_INVALID").With("key", "metrics_addr").Errorf("no observability address configured")
	}

	client := &http.Client{Timeout: sc.timeout}
	status := queryInstanceStatus(cmd.Context(), client, baseURL(sc.addr))

	if sc.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return oops.With("operation", "marshal status").Wrap(err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Print(formatStatusTable(status))
	return nil
}

func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

// queryInstanceStatus probes liveness then readiness.
func queryInstanceStatus(ctx context.Context, client *http.Client, base string) InstanceStatus {
	status := InstanceStatus{Addr: base}

	live, err := get(ctx, client, base+"/healthz/liveness")
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	_ = live.Body.Close()
	status.Live = live.StatusCode == http.StatusOK

	ready, err := get(ctx, client, base+"/healthz/readiness")
	if err != nil {
		status.Error = fmt.Sprintf("readiness probe failed: %v", err)
		return status
	}
	defer func() { _ = ready.Body.Close() }()

	var body observability.Readiness
	if err := json.NewDecoder(ready.Body).Decode(&body); err != nil {
		status.Error = fmt.Sprintf("failed to decode readiness response: %v", err)
		return status
	}
	status.Ready = body.Ready && ready.StatusCode == http.StatusOK
	status.Checks = body.Checks
	return status
}

func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, oops.Wrap(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, oops.Wrap(err)
	}
	return resp, nil
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status InstanceStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ADDR\tLIVE\tREADY")
	if status.Error != "" && !status.Live {
		_, _ = fmt.Fprintf(w, "%s\tno\tno\t%s\n", status.Addr, status.Error)
		_ = w.Flush()
		return buf.String()
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", status.Addr, yesNo(status.Live), yesNo(status.Ready))
	_ = w.Flush()

	if len(status.Checks) > 0 {
		names := make([]string, 0, len(status.Checks))
		for name := range status.Checks {
			names = append(names, name)
		}
		sort.Strings(names)

		buf.WriteString("\n")
		w = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "CHECK\tRESULT")
		for _, name := range names {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", name, status.Checks[name])
		}
		_ = w.Flush()
	}
	if status.Error != "" {
		buf.WriteString("\nerror: " + status.Error + "\n")
	}
	return buf.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/shrikectl/shrike/internal/audit"
	"github.com/shrikectl/shrike/internal/types"
)

func evaluateCmd() *cobra.Command {
	var eventFile string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a notification event and print the decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(eventFile)
			if err != nil {
				return err
			}
			var ev types.Event
			if err := yaml.Unmarshal(data, &ev); err != nil {
				return fmt.Errorf("parsing event: %w", err)
			}

			var decision types.Decision
			if err := newAPIClient(serverURL).post("/v1/notifications/evaluate", ev, &decision); err != nil {
				return err
			}
			if outputFmt == "json" {
				return printJSON(decision)
			}
			return printDecisions([]types.Decision{decision})
		},
	}
	cmd.Flags().StringVarP(&eventFile, "file", "f", "-", "Event JSON or YAML file, - for stdin")
	return cmd
}

func historyCmd() *cobra.Command {
	var (
		action string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "Show decision history for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if action != "" {
				query.Set("action", action)
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}

			var body struct {
				UserID  string           `json:"user_id"`
				Total   int              `json:"total"`
				Results []types.Decision `json:"results"`
			}
			if err := newAPIClient(serverURL).get("/v1/notifications/history/"+url.PathEscape(args[0]), query, &body); err != nil {
				return err
			}
			if outputFmt == "json" {
				return printJSON(body)
			}
			return printDecisions(body.Results)
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "Filter by action: NOW, LATER, NEVER")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results (server default 50)")
	return cmd
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage prioritization rules",
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var body struct {
				Rules []types.Rule `json:"rules"`
			}
			if err := newAPIClient(serverURL).get("/v1/rules", nil, &body); err != nil {
				return err
			}
			if outputFmt == "json" {
				return printJSON(body)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPRIORITY\tACTION\tCONDITIONS\tREASON")
			for _, r := range body.Rules {
				fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", r.Name, r.Priority, r.Action, len(r.Conditions), r.Reason)
			}
			return w.Flush()
		},
	}
}

func rulesAddCmd() *cobra.Command {
	var ruleFile string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a rule from a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(ruleFile)
			if err != nil {
				return err
			}
			var rule types.Rule
			if err := yaml.Unmarshal(data, &rule); err != nil {
				return fmt.Errorf("parsing rule: %w", err)
			}

			var body struct {
				Status string     `json:"status"`
				Rule   types.Rule `json:"rule"`
			}
			if err := newAPIClient(serverURL).post("/v1/rules", rule, &body); err != nil {
				return err
			}
			if outputFmt == "json" {
				return printJSON(body)
			}
			fmt.Printf("Rule %q created (priority %d, action %s)\n", body.Rule.Name, body.Rule.Priority, body.Rule.Action)
			return nil
		},
	}
	cmd.Flags().StringVarP(&ruleFile, "file", "f", "-", "Rule JSON or YAML file, - for stdin")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var body struct {
				Status       string            `json:"status"`
				Components   map[string]string `json:"components"`
				FallbackMode bool              `json:"fallback_mode"`
			}
			if err := newAPIClient(serverURL).get("/v1/health", nil, &body); err != nil {
				return err
			}
			if outputFmt == "json" {
				return printJSON(body)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "STATUS\t%s\n", body.Status)
			fmt.Fprintf(w, "FALLBACK MODE\t%v\n", body.FallbackMode)
			for name, state := range body.Components {
				fmt.Fprintf(w, "COMPONENT %s\t%s\n", name, state)
			}
			return w.Flush()
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate decision stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats audit.Stats
			if err := newAPIClient(serverURL).get("/v1/stats", nil, &stats); err != nil {
				return err
			}
			if outputFmt == "json" {
				return printJSON(stats)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "TOTAL EVALUATED\t%d\n", stats.TotalEvaluated)
			for _, action := range []string{types.ActionNow, types.ActionLater, types.ActionNever} {
				fmt.Fprintf(w, "%s\t%d\n", action, stats.ByAction[action])
			}
			fmt.Fprintf(w, "SUPPRESSION RATE\t%.1f%%\n", stats.SuppressionRate)
			fmt.Fprintf(w, "DEFERRED RATE\t%.1f%%\n", stats.DeferredRate)
			return w.Flush()
		},
	}
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDecisions(decisions []types.Decision) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tUSER\tACTION\tSCORE\tRULE\tREASON")
	for _, d := range decisions {
		rule := d.RuleMatched
		if rule == "" {
			rule = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%s\t%s\n", d.EventID, d.UserID, d.Action, d.Score, rule, d.Reason)
	}
	return w.Flush()
}

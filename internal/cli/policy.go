package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viant/agentmesh"
	model "github.com/viant/agentmesh/model/approval"
	"github.com/viant/agentmesh/policy"
	"gopkg.in/yaml.v3"
)

var (
	evalKind string
	evalData string
)

func init() {
	policyCmd.AddCommand(validateCmd, evalCmd, presetsCmd)
	evalCmd.Flags().StringVar(&evalKind, "kind", "", "action kind, e.g. api_call")
	evalCmd.Flags().StringVar(&evalData, "data", "{}", "action data as a JSON or YAML mapping")
	_ = evalCmd.MarkFlagRequired("kind")
	rootCmd.AddCommand(policyCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect approval policies",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configuration and print its approval policies",
	RunE:  validatePolicies,
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Report which policies require approval for an action",
	RunE:  evalPolicies,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Print the built-in policy presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		var policies []*policy.Policy
		for _, name := range policy.PresetNames() {
			p, _ := policy.Preset(name)
			policies = append(policies, p)
		}
		printPolicies(cmd.OutOrStdout(), policies)
		return nil
	},
}

func loadService(cmd *cobra.Command) (*agentmesh.Service, error) {
	cfg, err := agentmesh.LoadConfig(cmd.Context(), configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Events.Vendor = ""
	cfg.Tracing.Enabled = false
	return agentmesh.New(agentmesh.WithConfig(cfg))
}

func validatePolicies(cmd *cobra.Command, args []string) error {
	srv, err := loadService(cmd)
	if err != nil {
		return err
	}
	defer srv.Close()
	policies := srv.Approvals().Policies()
	if len(policies) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No policies configured.")
		return nil
	}
	printPolicies(cmd.OutOrStdout(), policies)
	return nil
}

func evalPolicies(cmd *cobra.Command, args []string) error {
	data := map[string]interface{}{}
	if err := yaml.Unmarshal([]byte(evalData), &data); err != nil {
		return fmt.Errorf("parsing --data: %w", err)
	}
	srv, err := loadService(cmd)
	if err != nil {
		return err
	}
	defer srv.Close()
	kind := model.ActionKind(evalKind)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-28s %-12s %s\n", "POLICY", "OUTCOME", "DETAIL")
	for _, p := range srv.Approvals().Policies() {
		outcome, err := p.Evaluate(kind, data)
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		fmt.Fprintf(out, "%-28s %-12s %s\n", p.Name, outcome, detail)
	}
	fmt.Fprintf(out, "approval required: %v\n", srv.Approvals().ShouldRequireApproval(kind, data))
	return nil
}

func printPolicies(out io.Writer, policies []*policy.Policy) {
	fmt.Fprintf(out, "%-28s %-40s %-9s %-8s %s\n", "NAME", "KINDS", "PRIORITY", "TIMEOUT", "ON TIMEOUT")
	for _, p := range policies {
		kinds := make([]string, len(p.ActionKinds))
		for i, kind := range p.ActionKinds {
			kinds[i] = string(kind)
		}
		timeout := "none"
		if p.Timeout > 0 {
			timeout = p.Timeout.String()
		}
		fmt.Fprintf(out, "%-28s %-40s %-9s %-8s %s\n", p.Name, strings.Join(kinds, ","), p.PriorityOrDefault(), timeout, p.AutoDecisionOrDefault())
	}
}

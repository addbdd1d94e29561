package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/edgefilter/bodyroute/internal/config"
	"github.com/edgefilter/bodyroute/internal/extract"
	"github.com/edgefilter/bodyroute/internal/rules"
)

var (
	checkBody string
	checkFile string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run a routing decision without a running proxy",
	Long: `Check which route a request body would be sent to without running
the proxy. The body is read from --body, --file, or stdin.`,
	Example: `  bodyroute check -c routes.yaml --body '{"method":"invoke_echo2_service"}'
  cat request.json | bodyroute check -c routes.yaml`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkBody, "body", "", "request body to evaluate")
	checkCmd.Flags().StringVar(&checkFile, "file", "", "file containing the request body")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	body, err := readCheckBody()
	if err != nil {
		return err
	}

	var engine rules.Engine
	if cfg.RegoPolicy != "" {
		engine, err = rules.NewOPAEngine(cfg.RegoPolicy, cfg.DefaultRoute)
		if err != nil {
			return fmt.Errorf("creating rego engine: %w", err)
		}
	} else {
		engine, err = rules.NewYAMLEngineFromFile(cfg.RouteFile)
		if err != nil {
			return fmt.Errorf("creating rule engine: %w", err)
		}
	}

	signal, present := extract.Field(body, cfg.SignalField)

	result, err := engine.Evaluate(context.Background(), &rules.EvalInput{
		Signal:  signal,
		Present: present,
	})
	if err != nil {
		return fmt.Errorf("evaluation error: %w", err)
	}

	output := struct {
		Route         string `json:"route"`
		Rule          string `json:"rule,omitempty"`
		Signal        string `json:"signal,omitempty"`
		SignalPresent bool   `json:"signal_present"`
	}{
		Route:         result.Route,
		Rule:          result.Rule,
		Signal:        signal,
		SignalPresent: present,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func readCheckBody() ([]byte, error) {
	switch {
	case checkBody != "":
		return []byte(checkBody), nil
	case checkFile != "":
		data, err := os.ReadFile(checkFile)
		if err != nil {
			return nil, fmt.Errorf("reading body file: %w", err)
		}
		return data, nil
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading body from stdin: %w", err)
		}
		return data, nil
	}
}

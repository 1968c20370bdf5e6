package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [rules.yaml]",
	Short: "Compile a rule set and report configuration faults",
	Long: `Validate compiles a rule set document. Without an argument it checks the
built-in SM2 rule set. Any configuration fault is reported and the command
exits non-zero.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		compiled, err := compileRuleSet(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rule set ok (fingerprint %s)\n", compiled.Fingerprint)
		for _, src := range compiled.Sources {
			fmt.Fprintf(out, "  source %-12s tag=%-12s mode=%-12s levels=%d\n",
				src.Key, src.Tag, src.Mode, len(src.Levels))
		}
		fmt.Fprintf(out, "  metrics: %d\n", len(compiled.Metrics))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

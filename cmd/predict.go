package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"eou/internal/app"
	"eou/internal/clix"
	"eou/internal/models"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run path prediction in-process on lines read from stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		candidates, err := clix.ParseCandidates(cmd.Flags())
		if err != nil {
			return err
		}
		threshold, err := clix.ParseThreshold(cmd.Flags())
		if err != nil {
			return err
		}

		if len(args) > 0 {
			return predictOnce(cmd, appInstance, strings.Join(args, " "), candidates, threshold, cmd.OutOrStdout())
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(cmd.OutOrStdout(), color.CyanString("Input: "))
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				return nil
			}
			if err := predictOnce(cmd, appInstance, line, candidates, threshold, cmd.OutOrStdout()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.RedString("ERROR"), err)
			}
		}
	},
}

func predictOnce(cmd *cobra.Command, a *app.App, input string, candidates models.CandidateSet, threshold *float64, out io.Writer) error {
	res, err := a.PathService.Predict(cmd.Context(), models.PathRequest{
		Input:            &input,
		PathDescriptions: &candidates,
		Threshold:        threshold,
	})
	if err != nil {
		return err
	}

	path := color.GreenString(res.Path)
	if res.Path == models.PathNone {
		path = color.YellowString(res.Path)
	}
	fmt.Fprintf(out, "Path: %s  score: %.3f  time: %.4fs\n", path, res.Score, res.CalculationTime)

	if len(res.Ranked) == 0 {
		return nil
	}
	descriptions := make(map[string]string, len(candidates))
	for _, c := range candidates {
		descriptions[c.Label] = c.Description
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Path", "Score", "Description"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, r := range res.Ranked {
		table.Append([]string{r.Label, fmt.Sprintf("%.3f", r.Score), descriptions[r.Label]})
	}
	table.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().String("paths", "", "YAML or JSON file mapping path labels to descriptions")
	predictCmd.Flags().Float64("threshold", 0, "Decision threshold in [0, 1] (defaults to path.threshold)")
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"eou/internal/models"
	"eou/internal/util"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var eouCmd = &cobra.Command{
	Use:   "eou [text...]",
	Short: "Print the end-of-utterance probability of a conversation",
	Long: `Scores a conversation read from --file, either a JSON array of
{role, content} messages or an object with a "messages" field. Without a file
the arguments are scored as a single user turn.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if appInstance.EOUService == nil {
			return fmt.Errorf("EOU prediction is disabled (set eou.enabled)")
		}

		file, _ := cmd.Flags().GetString("file")
		var req models.EOURequest
		switch {
		case file != "":
			req, err = loadConversation(file)
			if err != nil {
				return err
			}
		case len(args) > 0:
			req.Messages = []models.Message{{Role: "user", Content: strings.Join(args, " "), HasText: true}}
		default:
			return fmt.Errorf("provide --file or the text to score")
		}

		res, err := appInstance.EOUService.Predict(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "EOU probability: %s  time: %.4fs\n",
			color.GreenString("%.3f", res.Probability), res.CalculationTime)
		return nil
	},
}

// loadConversation accepts either a bare message array or {"messages": [...]}.
func loadConversation(path string) (models.EOURequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.EOURequest{}, fmt.Errorf("read conversation: %w", err)
	}
	content, err := util.CleanFileContent(raw, path)
	if err != nil {
		return models.EOURequest{}, err
	}

	var req models.EOURequest
	if strings.HasPrefix(strings.TrimSpace(content), "[") {
		err = json.Unmarshal([]byte(content), &req.Messages)
	} else {
		err = json.Unmarshal([]byte(content), &req)
	}
	if err != nil {
		return models.EOURequest{}, fmt.Errorf("parse conversation %s: %w", path, err)
	}
	return req, nil
}

func init() {
	rootCmd.AddCommand(eouCmd)

	eouCmd.Flags().String("file", "", "JSON file holding the conversation")
}

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"eou/internal/clix"
	"eou/internal/models"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

const defaultClientURL = "ws://localhost:8080/v1/stream"

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Interactive demo client for the path prediction socket",
	Long: `Connects to a running gateway, sends every line typed on stdin as a path
request and prints the raw reply. An empty line closes the connection.`,
	Annotations: map[string]string{noAppAnnotation: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		candidates, err := clix.ParseCandidates(cmd.Flags())
		if err != nil {
			return err
		}
		rawURL, _ := cmd.Flags().GetString("url")
		apiKey, _ := cmd.Flags().GetString("api-key")
		if apiKey == "" {
			apiKey = os.Getenv("EOU_API_KEY")
		}
		endpoint, err := clientURL(rawURL, apiKey)
		if err != nil {
			return err
		}
		return runClient(cmd.Context(), endpoint, candidates, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// clientURL adds the api_key query parameter to rawURL.
func clientURL(rawURL, apiKey string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("the WebSocket URL is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("the WebSocket URL is invalid: scheme must be ws or wss, got %q", u.Scheme)
	}
	if apiKey != "" {
		q := u.Query()
		q.Set("api_key", apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func runClient(ctx context.Context, endpoint string, candidates models.CandidateSet, in io.Reader, out io.Writer) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connection refused with HTTP %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	fmt.Fprintf(out, "Connected to %s\n", redactKey(endpoint))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, color.CyanString("User says: "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprintln(out, "No input provided. Closing connection...")
			break
		}

		msg := struct {
			Input            string              `json:"input"`
			PathDescriptions models.CandidateSet `json:"path_descriptions"`
		}{line, candidates}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("connection was closed unexpectedly: %w", err)
		}
		fmt.Fprintln(out, "Sent!")

		_, reply, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("connection was closed unexpectedly: %w", err)
		}
		fmt.Fprintf(out, "Raw response received: %s\n", color.GreenString(string(reply)))
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
	return scanner.Err()
}

func redactKey(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Query().Get("api_key") == "" {
		return endpoint
	}
	q := u.Query()
	q.Set("api_key", "***")
	u.RawQuery = q.Encode()
	return u.String()
}

func init() {
	rootCmd.AddCommand(clientCmd)

	clientCmd.Flags().String("url", defaultClientURL, "WebSocket URL of the path prediction stream")
	clientCmd.Flags().String("api-key", "", "API key (defaults to EOU_API_KEY)")
	clientCmd.Flags().String("paths", "", "YAML or JSON file mapping path labels to descriptions")
}

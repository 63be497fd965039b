package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deepakmehta1/travel-mcp-prod/internal/gateway"
)

func newAskCmd() *cobra.Command {
	var (
		server   string
		session  string
		noStream bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Talk to a running travel agent",
		Long:  "Ask sends a question to a running gateway and prints the answer. With no arguments it starts an interactive chat.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				server = os.Getenv("AGENT_URL")
			}
			if server == "" {
				server = "http://localhost:8000"
			}

			client := gateway.NewClient(server, session)

			model, err := client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("agent not responding at %s: %w", server, err)
			}
			log.Info().Str("server", server).Str("model", model).Msg("agent is healthy")

			if len(args) > 0 {
				return askOnce(cmd, client, strings.Join(args, " "), noStream)
			}
			return askInteractive(cmd, client, noStream)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "gateway base URL (default $AGENT_URL or http://localhost:8000)")
	cmd.Flags().StringVar(&session, "session", "", "session identifier (default shared)")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "wait for the complete answer instead of streaming")

	return cmd
}

func askOnce(cmd *cobra.Command, client *gateway.Client, question string, noStream bool) error {
	if noStream {
		answer, err := client.Query(cmd.Context(), question)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}
	_, err := client.StreamQuery(cmd.Context(), question, func(chunk string) {
		fmt.Print(chunk)
	})
	fmt.Println()
	return err
}

func askInteractive(cmd *cobra.Command, client *gateway.Client, noStream bool) error {
	fmt.Println("Interactive mode. Type a question, or 'reset' to clear the conversation, 'quit' to leave.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit":
			return nil
		case "reset":
			if err := client.Reset(cmd.Context()); err != nil {
				log.Error().Err(err).Msg("reset failed")
			} else {
				fmt.Println("Conversation cleared.")
			}
			continue
		case "health":
			model, err := client.Health(cmd.Context())
			if err != nil {
				log.Error().Err(err).Msg("health check failed")
			} else {
				fmt.Printf("Agent is healthy, model %s\n", model)
			}
			continue
		}

		fmt.Print("Agent: ")
		if err := askOnce(cmd, client, line, noStream); err != nil {
			log.Error().Err(err).Msg("query failed")
		}
	}
}

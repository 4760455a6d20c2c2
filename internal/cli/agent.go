package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewAgentCmd создаёт группу команд для управления операторами.
func NewAgentCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
	}

	cmd.AddCommand(
		newAgentListCmd(clientFn, outputFn),
		newAgentCreateCmd(clientFn, outputFn),
		newAgentShowCmd(clientFn, outputFn),
		newAgentDeleteCmd(clientFn, outputFn),
		newAgentStatusCmd(clientFn, outputFn),
	)

	return cmd
}

var agentHeaders = []string{"ID", "NAME", "MAX_CONCURRENT", "SKILLS", "WEIGHT"}

func agentRow(a *AgentResponse) []string {
	return []string{
		a.ID, a.Name,
		strconv.Itoa(a.MaxConcurrent),
		strings.Join(a.Skills, ","),
		strconv.Itoa(a.Weight),
	}
}

func newAgentListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			agents, err := client.ListAgents()
			if err != nil {
				return err
			}

			rows := make([][]string, len(agents))
			for i := range agents {
				rows[i] = agentRow(&agents[i])
			}

			out.Print(agentHeaders, rows, agents)
			return nil
		},
	}
}

func newAgentCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateAgentRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			agent, err := client.CreateAgent(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Agent created: %s", agent.ID))
			out.Print(agentHeaders, [][]string{agentRow(agent)}, agent)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "Agent ID (required)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Agent name (required)")
	cmd.Flags().IntVar(&req.MaxConcurrent, "max-concurrent", 1, "Max concurrent calls")
	cmd.Flags().StringSliceVar(&req.Skills, "skills", nil, "Agent skills (comma-separated)")
	cmd.Flags().IntVar(&req.Weight, "weight", 0, "Routing weight, higher wins ties")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newAgentShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show agent details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			agent, err := client.GetAgent(args[0])
			if err != nil {
				return err
			}

			out.Print(agentHeaders, [][]string{agentRow(agent)}, agent)
			return nil
		},
	}
}

func newAgentDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteAgent(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Agent deleted: %s", args[0]))
			return nil
		},
	}
}

func newAgentStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Set agent status (ONLINE, OFFLINE, BUSY)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.SetAgentStatus(args[0], args[1]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Agent %s status set to %s", args[0], args[1]))
			return nil
		},
	}
}

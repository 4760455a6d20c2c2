package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewCallCmd создаёт группу команд для работы со звонками.
func NewCallCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Inspect and simulate calls",
	}

	cmd.AddCommand(
		newCallListCmd(clientFn, outputFn),
		newCallStartCmd(clientFn, outputFn),
		newCallDigitsCmd(clientFn, outputFn),
		newCallHangupCmd(clientFn, outputFn),
	)

	return cmd
}

func newCallListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent completed calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			records, err := client.ListRecentCalls(limit)
			if err != nil {
				return err
			}

			headers := []string{"CALL_ID", "CALLER", "CALLED", "STATUS", "QUEUE", "AGENT", "STARTED", "FINISHED"}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					r.CallID, r.Caller, r.Called, r.Status,
					r.QueueName, r.AgentID, r.StartedAt, r.FinishedAt,
				}
			}

			out.Print(headers, rows, records)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Max records to return")

	return cmd
}

// newCallStartCmd симулирует входящий звонок: отправляет событие started
// через gateway, как это сделал бы провайдер телефонии.
func newCallStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var caller string
	var called string
	var callID string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Simulate an inbound call (sends a started event)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if callID == "" {
				callID = uuid.New().String()
			}

			err := client.SendTelephonyEvent(TelephonyEventRequest{
				CallID: callID,
				Type:   "started",
				Caller: caller,
				Called: called,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Call started: %s", callID))
			return nil
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "Caller number (required)")
	cmd.Flags().StringVar(&called, "called", "", "Called number, routes to a flow (required)")
	cmd.Flags().StringVar(&callID, "call-id", "", "Call ID, generated if omitted")
	cmd.MarkFlagRequired("caller")
	cmd.MarkFlagRequired("called")

	return cmd
}

func newCallDigitsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "digits CALL_ID DIGITS",
		Short: "Simulate DTMF input on an active call",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			err := client.SendTelephonyEvent(TelephonyEventRequest{
				CallID: args[0],
				Type:   "digits",
				Digits: args[1],
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Digits %q sent to call %s", args[1], args[0]))
			return nil
		},
	}
}

func newCallHangupCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "hangup CALL_ID",
		Short: "Simulate caller hangup (sends an ended event)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			err := client.SendTelephonyEvent(TelephonyEventRequest{
				CallID: args[0],
				Type:   "ended",
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Call ended: %s", args[0]))
			return nil
		},
	}
}

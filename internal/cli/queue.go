package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewQueueCmd создаёт группу команд для управления очередями.
func NewQueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage call queues",
	}

	cmd.AddCommand(
		newQueueListCmd(clientFn, outputFn),
		newQueueCreateCmd(clientFn, outputFn),
		newQueueDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

var queueHeaders = []string{"NAME", "STRATEGY", "MAX_SIZE", "MAX_WAIT_SEC"}

func queueRow(q *QueueResponse) []string {
	return []string{
		q.Name, q.Strategy,
		strconv.Itoa(q.MaxSize),
		strconv.Itoa(q.MaxWaitSec),
	}
}

func newQueueListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			queues, err := client.ListQueues()
			if err != nil {
				return err
			}

			rows := make([][]string, len(queues))
			for i := range queues {
				rows[i] = queueRow(&queues[i])
			}

			out.Print(queueHeaders, rows, queues)
			return nil
		},
	}
}

func newQueueCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateQueueRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			queue, err := client.CreateQueue(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Queue created: %s", queue.Name))
			out.Print(queueHeaders, [][]string{queueRow(queue)}, queue)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Queue name (required)")
	cmd.Flags().StringVar(&req.Strategy, "strategy", "fifo", "Assignment strategy (fifo, priority, longest-idle-agent)")
	cmd.Flags().IntVar(&req.MaxSize, "max-size", 0, "Max waiting calls, 0 = unlimited")
	cmd.Flags().IntVar(&req.MaxWaitSec, "max-wait-sec", 0, "Max wait before overflow, 0 = unlimited")
	cmd.Flags().StringVar(&req.HoldAudioRef, "hold-audio", "", "Hold audio reference")
	cmd.Flags().StringVar(&req.AnnounceAudioRef, "announce-audio", "", "Periodic announce audio reference")
	cmd.Flags().IntVar(&req.AnnounceIntervalSec, "announce-interval-sec", 0, "Announce interval in seconds")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newQueueDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteQueue(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Queue deleted: %s", args[0]))
			return nil
		},
	}
}

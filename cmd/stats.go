package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/fluxbyte/chatgate/pkg/protocol"
)

func statsCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print cache and connection statistics from a running gateway",
		Run: func(cmd *cobra.Command, args []string) {
			runStats(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8765", "gateway address")
	return cmd
}

func runStats(addr string) {
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", addr), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WebSocket connect failed: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.ClientFrame{Command: protocol.CommandStats}); err != nil {
		fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
		os.Exit(1)
	}

	var stats protocol.StatsFrame
	if err := conn.ReadJSON(&stats); err != nil {
		fmt.Fprintf(os.Stderr, "Read failed: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encode failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/fluxbyte/chatgate/pkg/protocol"
)

func chatCmd() *cobra.Command {
	var addr, authID, chatID, agentID, systemPrompt string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat against a running gateway",
		Run: func(cmd *cobra.Command, args []string) {
			if authID == "" {
				authID = uuid.NewString()
			}
			if chatID == "" {
				chatID = uuid.NewString()
			}
			runChatClient(addr, authID, chatID, agentID, systemPrompt)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8765", "gateway address")
	cmd.Flags().StringVar(&authID, "auth", "", "auth uuid (random if empty)")
	cmd.Flags().StringVar(&chatID, "chat", "", "chat uuid (random if empty)")
	cmd.Flags().StringVar(&agentID, "agent", "", "agent uuid (created on first turn if empty)")
	cmd.Flags().StringVar(&systemPrompt, "system-prompt", "", "system prompt for a newly created agent")
	return cmd
}

func runChatClient(addr, authID, chatID, agentID, systemPrompt string) {
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", addr), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WebSocket connect failed: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := wsIdentify(conn, authID); err != nil {
		fmt.Fprintf(os.Stderr, "Identify failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "\nchatgate interactive chat\n")
	fmt.Fprintf(os.Stderr, "Auth: %s\nChat: %s\n", authID, chatID)
	fmt.Fprintf(os.Stderr, "Type \"exit\" to quit, \"/new\" for a new chat\n\n")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Fprintln(os.Stderr, "Goodbye!")
			return
		}
		if input == "/new" {
			chatID = uuid.NewString()
			fmt.Fprintf(os.Stderr, "New chat: %s\n\n", chatID)
			continue
		}

		frame := protocol.ClientFrame{
			ChatUUID:     chatID,
			Content:      input,
			SenderUUID:   authID,
			AgentUUID:    agentID,
			SystemPrompt: systemPrompt,
		}
		if err := conn.WriteJSON(frame); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			continue
		}
		if err := readTurn(conn); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		}
	}
}

// wsIdentify binds the auth id and waits for the ack.
func wsIdentify(conn *websocket.Conn, authID string) error {
	if err := conn.WriteJSON(protocol.ClientFrame{Command: protocol.CommandIdentify, AuthUUID: authID}); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}

	var ack protocol.IdentifiedFrame
	if err := conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("read identify ack: %w", err)
	}
	if ack.Type != "identified" {
		return fmt.Errorf("unexpected ack type %q", ack.Type)
	}
	return nil
}

// readTurn prints partial frames as they stream in and returns after the
// terminal frame or an error frame.
func readTurn(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var errFrame protocol.ErrorFrame
		if json.Unmarshal(raw, &errFrame) == nil && errFrame.Error != "" {
			return fmt.Errorf("%s", errFrame.Error)
		}

		var frame protocol.StreamFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Partial {
			fmt.Print(frame.Content)
			continue
		}
		fmt.Print("\n\n")
		return nil
	}
}

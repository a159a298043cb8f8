// Sealbox CLI - Command line client for the Sealbox key-exchange relay
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sealbox-protocol/sealbox/clients/go/sealbox"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("SEALBOX_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	userID := os.Getenv("SEALBOX_USER")
	if userID == "" {
		fmt.Fprintln(os.Stderr, "SEALBOX_USER must be set")
		os.Exit(1)
	}

	client := sealbox.NewClient(baseURL, userID)
	ctx := context.Background()
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health(ctx)
		exitOnError(err)
		printJSON(resp)

	case "create":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: sealbox create <seller_id> <buyer_id> <subject>")
			os.Exit(1)
		}
		resp, err := client.CreateSession(ctx, os.Args[2], os.Args[3], os.Args[4])
		exitOnError(err)
		fmt.Printf("Session: %s (%s)\n", resp.SessionID, resp.Status)
		fmt.Printf("Expires: %s\n", resp.ExpiresAt.Format(time.RFC3339))

	case "sessions":
		resp, err := client.ListSessions(ctx)
		exitOnError(err)
		for _, s := range resp {
			fmt.Printf("  %s  [%s] %s with %s (%s, %d unread)\n",
				s.SessionID, s.Status, s.Subject, s.Counterpart, s.Role, s.Unread)
		}

	case "show":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: sealbox show <session_id>")
			os.Exit(1)
		}
		resp, err := client.GetSession(ctx, os.Args[2])
		exitOnError(err)
		printJSON(resp)

	case "submit":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: sealbox submit <session_id> <role> <public_key_hex>")
			os.Exit(1)
		}
		resp, err := client.SubmitKey(ctx, os.Args[2], os.Args[3], os.Args[4])
		exitOnError(err)
		fmt.Printf("Status: %s\n", resp.Status)
		if resp.CounterpartPublicKey != "" {
			fmt.Printf("Counterpart key: %s\n", resp.CounterpartPublicKey)
		}

	case "read":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: sealbox read <session_id>")
			os.Exit(1)
		}
		msgs, err := client.GetMessages(ctx, os.Args[2])
		exitOnError(err)
		for _, msg := range msgs {
			ts := time.UnixMilli(msg.Timestamp).Format("2006-01-02 15:04:05")
			fmt.Printf("[%s] %s: ciphertext=%s iv=%s tag=%s\n",
				ts, msg.From, msg.Ciphertext, msg.IV, msg.AuthTag)
		}

	case "listen":
		err := client.Listen(ctx, func(ev sealbox.Event) {
			ts := time.UnixMilli(ev.Timestamp).Format("15:04:05")
			fmt.Printf("[%s] %s %s\n", ts, ev.Type, string(ev.Data))
		})
		exitOnError(err)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Sealbox CLI - key-exchange relay client

Usage: sealbox <command> [options]

Commands:
  create <seller> <buyer> <subject>   Start a key-exchange session
  sessions                            List my sessions
  show <session_id>                   Show one session
  submit <session_id> <role> <key>    Submit a public value (hex)
  read <session_id>                   Read sealed messages addressed to me
  listen                              Stream push events
  health                              Check relay health

Environment:
  SEALBOX_URL    Relay URL (default: http://localhost:3000)
  SEALBOX_USER   Authenticated user id (stamped by the gateway in production)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/alfredjeanlab/gridpanel/internal/events"
	"github.com/alfredjeanlab/gridpanel/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch [grid]",
	Short:   "Follow grid change events, optionally re-reading a grid's data",
	GroupID: "events",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			return fmt.Errorf("no NATS server: set --nats or GRIDPANEL_NATS_URL")
		}
		refresh, _ := cmd.Flags().GetBool("refresh")

		topic := events.TopicAll
		gridID := ""
		if len(args) == 1 {
			gridID = args[0]
			topic = events.Topic(gridID, "*")
		} else if refresh {
			return fmt.Errorf("--refresh needs a grid")
		}
		req, err := dataRequest(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		reconnectCh := make(chan struct{}, 1)
		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
				select {
				case reconnectCh <- struct{}{}:
				default:
				}
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer cancel()

		if refresh {
			if err := printData(ctx, gridID, req); err != nil {
				return err
			}
		}

		debounce := time.NewTimer(0)
		debounce.Stop()
		select {
		case <-debounce.C:
		default:
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				printEvent(msg)
				if refresh {
					debounce.Reset(200 * time.Millisecond)
				}
			case <-reconnectCh:
				if refresh {
					debounce.Reset(0)
				}
			case <-debounce.C:
				if err := printData(ctx, gridID, req); err != nil && ctx.Err() == nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().String("nats", os.Getenv("GRIDPANEL_NATS_URL"), "NATS server URL")
	watchCmd.Flags().Bool("refresh", false, "re-read and print the grid's data after each change")
	watchCmd.Flags().String("filter", "", "column filter as JSON (with --refresh)")
	watchCmd.Flags().String("where", "", "extended search conditions as a JSON object (with --refresh)")
	watchCmd.Flags().String("sort", "", "column to sort by (with --refresh)")
	watchCmd.Flags().String("dir", "ASC", "sort direction (with --refresh)")
	watchCmd.Flags().Int("start", 0, "offset of the first row (with --refresh)")
	watchCmd.Flags().Int("limit", 0, "rows per page (with --refresh)")
	watchCmd.Flags().Bool("last", false, "replay the last query of the session (with --refresh)")
}

// changeEvent decodes both event kinds; they share their fields.
type changeEvent struct {
	Grid     string    `json:"grid"`
	Endpoint string    `json:"endpoint"`
	Session  string    `json:"session"`
	At       time.Time `json:"at"`
}

func printEvent(msg events.Message) {
	if jsonOutput {
		fmt.Println(string(msg.Data))
		return
	}
	_, kind, _ := events.GridFromTopic(msg.Topic)
	var ev changeEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		fmt.Printf("%s %s\n", msg.Topic, ui.RenderMuted("(undecodable payload)"))
		return
	}
	fmt.Printf("%s %s %s %s\n",
		ui.RenderMuted(ev.At.Local().Format("15:04:05")),
		ui.RenderAccent(ev.Grid),
		kind,
		ui.RenderMuted(ev.Endpoint+" "+ev.Session),
	)
}

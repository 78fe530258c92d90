// Package main provides the remote control CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/tapedeck/internal/api/connect"
)

// action runs one command against the server.
type action func(ctx context.Context, client *apiconnect.PlayerServiceClient) error

var (
	app    = kingpin.New("tapedeck-playerctl", "tapedeck remote control")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token (or set CONTROL_TOKEN env)").Envar("CONTROL_TOKEN").String()

	// watch command
	watchCmd = app.Command("watch", "Print every state change until interrupted")

	// shell command
	shellCmd = app.Command("shell", "Start an interactive shell")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	actions := registerCommands(app)
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: control token is required (use --token or CONTROL_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewPlayerServiceClient(
		http.DefaultClient,
		*server,
		*token,
		connect.WithInterceptors(apiconnect.NewRequestIDInterceptor()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case watchCmd.FullCommand():
		err = watch(ctx, client)
	case shellCmd.FullCommand():
		err = shell(ctx, client)
	default:
		err = actions[command](ctx, client)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// registerCommands adds the player commands to app and returns their actions
// by command name. The shell registers them again on its own parser.
func registerCommands(app *kingpin.Application) map[string]action {
	actions := make(map[string]action)
	add := func(cmd *kingpin.CmdClause, a action) {
		actions[cmd.FullCommand()] = a
	}

	add(app.Command("status", "Show the current state"), func(ctx context.Context, c *apiconnect.PlayerServiceClient) error {
		return printResult(c.GetState(ctx))
	})

	queueCmd := app.Command("queue", "Replace the queue and start playing")
	queueRefs := queueCmd.Arg("refs", "References (track:ID, album:ID, playlist:ID)").Required().Strings()
	queueEntry := queueCmd.Flag("entry", "Entry to start at").Default("0").Int()
	queueSub := queueCmd.Flag("sub", "Track inside the entry to start at").Default("0").Int()
	add(queueCmd, func(ctx context.Context, c *apiconnect.PlayerServiceClient) error {
		return printResult(c.PlayQueue(ctx, *queueRefs, *queueEntry, *queueSub))
	})

	enqueueCmd := app.Command("enqueue", "Append to the queue").Alias("add")
	enqueueRefs := enqueueCmd.Arg("refs", "References (track:ID, album:ID, playlist:ID)").Required().Strings()
	add(enqueueCmd, func(ctx context.Context, c *apiconnect.PlayerServiceClient) error {
		return printResult(c.Enqueue(ctx, *enqueueRefs))
	})

	add(app.Command("play", "Resume playback"), func(ctx context.Context, c *apiconnect.PlayerServiceClient) error {
		return printResult(c.Play(ctx))
	})
	add(app.Command("pause", "Pause playback"), func(ctx context.Context, c *apiconnect.PlayerServiceClient) error {
		return printResult(c.Pause(ctx))
	})
	add(app.Command("next", "Skip to the next track"), func(ctx context.Context, c *apiconnect.PlayerServiceClient) error {
		return printResult(c.Next(ctx))
	})
	add(app.Command("previous", "Go back to the previous track").Alias("prev"), func(ctx context.Context, c *apiconnect.PlayerServiceClient) error {
		return printResult(c.Previous(ctx))
	})

	seekCmd := app.Command("seek", "Seek inside the current track")
	seekTo := seekCmd.Arg("position", "Position (e.g. 90s, 1m30s)").Required().Duration()
	add(seekCmd, func(ctx context.Context, c *apiconnect.PlayerServiceClient) error {
		return printResult(c.Seek(ctx, seekTo.Milliseconds()))
	})

	jumpCmd := app.Command("jump", "Play an entry, or a track inside an entry")
	jumpEntry := jumpCmd.Arg("entry", "Entry index").Required().Int()
	jumpSub := jumpCmd.Arg("sub", "Track index inside the entry").Int()
	add(jumpCmd, func(ctx context.Context, c *apiconnect.PlayerServiceClient) error {
		if *jumpSub > 0 {
			return printResult(c.JumpToSubItem(ctx, *jumpEntry, *jumpSub))
		}
		return printResult(c.JumpToEntry(ctx, *jumpEntry))
	})

	add(app.Command("repeat", "Cycle the repeat mode (off, list, track)"), func(ctx context.Context, c *apiconnect.PlayerServiceClient) error {
		mode, err := c.ToggleRepeat(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Repeat: %s\n", mode)
		return nil
	})

	return actions
}

func printResult(st *apiconnect.PlayerState, err error) error {
	if err != nil {
		return err
	}
	printState(st)
	return nil
}

func watch(ctx context.Context, client *apiconnect.PlayerServiceClient) error {
	stream, err := client.WatchState(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Println("Watching state. Press Ctrl+C to exit.")
	for stream.Receive() {
		st := stream.Msg()
		fmt.Printf("\n[Sequence: %d]\n", st.SequenceNo)
		printState(st)
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "stream error")
	}
	return nil
}

func printState(st *apiconnect.PlayerState) {
	fmt.Printf("Status: %s\n", st.Status)
	if st.Status != "available" {
		return
	}

	state := "Paused"
	if st.IsPlaying {
		state = "Playing"
	}
	if st.Current != nil {
		fmt.Printf("%s: %s - %s [%s / %s]\n",
			state, st.Current.Name, strings.Join(st.Current.Artists, ", "),
			formatDuration(st.Elapsed()), formatDuration(st.Duration()))
		if !st.Current.Playable {
			fmt.Println("  (not playable)")
		}
	}
	fmt.Printf("Repeat: %s  Enabled: %v\n", st.Repeat, st.Enabled)

	fmt.Printf("\nQueue (%d entries):\n", len(st.Entries))
	for i, e := range st.Entries {
		marker := " "
		if i == st.Cursor.Entry {
			marker = ">"
		}
		fmt.Printf("%s %2d. [%s] %s\n", marker, i, e.Kind, e.Title)
		if e.Kind == "track" {
			continue
		}
		for j, t := range e.Tracks {
			sub := " "
			if i == st.Cursor.Entry && j == st.Cursor.Sub {
				sub = "*"
			}
			fmt.Printf("     %s %2d. %s (%s)\n", sub, j, t.Name, formatDuration(time.Duration(t.DurationMs)*time.Millisecond))
		}
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"

	apiconnect "github.com/osa030/tapedeck/internal/api/connect"
)

// shell reads commands until EOF or "quit". Each line is parsed with the
// same command set as the command line.
func shell(ctx context.Context, client *apiconnect.PlayerServiceClient) error {
	names := commandNames()
	items := make([]readline.PrefixCompleterInterface, 0, len(names)+2)
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("help"), readline.PcItem("quit"))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tapedeck> ",
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return errors.Wrap(err, "failed to start shell")
	}
	defer rl.Close()

	fmt.Println("Type 'help' for commands, TAB to complete, 'quit' to exit.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "quit", "exit":
			return nil
		case "help":
			args = []string{"--help"}
		}

		if err := runLine(ctx, client, args); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// runLine parses args with a fresh parser that reports errors instead of exiting.
func runLine(ctx context.Context, client *apiconnect.PlayerServiceClient, args []string) error {
	parser := kingpin.New("", "").Terminate(func(int) {})
	parser.UsageWriter(os.Stdout)
	parser.ErrorWriter(os.Stdout)
	actions := registerCommands(parser)

	command, err := parser.Parse(args)
	if err != nil {
		return err
	}
	a, ok := actions[command]
	if !ok {
		// --help was handled by the parser.
		return nil
	}
	return a(ctx, client)
}

func commandNames() []string {
	parser := kingpin.New("", "")
	registerCommands(parser)
	var names []string
	for _, cmd := range parser.Model().Commands {
		names = append(names, cmd.Name)
		names = append(names, cmd.Aliases...)
	}
	return names
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/mood"
)

var (
	botColor   = color.New(color.FgCyan, color.Bold)
	moodColor  = color.New(color.FgHiBlack)
	errorColor = color.New(color.FgRed)
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the bot in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			// Keep logs out of the conversation unless asked for.
			if cfg.Log.Level == "info" {
				cfg.Log.Level = "warn"
			}
			bot, err := newBot(cfg, newLogger(cfg), nil)
			if err != nil {
				return err
			}

			historyFile := ""
			if home, err := os.UserHomeDir(); err == nil {
				historyFile = filepath.Join(home, ".emotibot-history")
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "you> ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				Stdin:           readline.NewCancelableStdin(os.Stdin),
				Stdout:          os.Stdout,
				Stderr:          os.Stderr,
			})
			if err != nil {
				return fmt.Errorf("init readline: %w", err)
			}
			defer rl.Close()

			out := rl.Stdout()
			fmt.Fprintln(out, "emotibot - type 'exit' to quit")

			var conversationID string
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						return nil
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}

				line = strings.TrimSpace(line)
				switch line {
				case "":
					continue
				case "exit", "quit":
					return nil
				}

				res, err := bot.Chat(cmd.Context(), line, conversationID)
				if err != nil {
					errorColor.Fprintf(out, "error: %v\n", err)
					continue
				}
				conversationID = res.ConversationID

				botColor.Fprintf(out, "bot> ")
				fmt.Fprintln(out, res.Response)
				moodColor.Fprintln(out, "     "+describe(res.Mood, res.Classification))
			}
		},
	}
}

func describe(m core.MoodVector, c mood.Classification) string {
	parts := make([]string, 0, len(core.Fields))
	for _, f := range core.Fields {
		parts = append(parts, fmt.Sprintf("%s %.0f (%s)", f, m.Get(f), c.Level(f)))
	}
	return fmt.Sprintf("[%s] dominant: %s", strings.Join(parts, ", "), c.Dominant)
}

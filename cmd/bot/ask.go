package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xaenox/astro-bot/internal/consultation"
	"github.com/xaenox/astro-bot/internal/storage"
)

// runAsk consults from the terminal against an in-memory session, using the
// configured completion settings.
func runAsk(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	svc, err := buildService(cfg, storage.NewMemoryStorage(), logger)
	if err != nil {
		return err
	}

	return ask(cmd.Context(), svc, os.Stdin, cmd.OutOrStdout(), messageFlag)
}

// ask sends message as a single turn, or reads one message per line from in
// until EOF or "exit" when message is empty.
func ask(ctx context.Context, svc *consultation.Service, in io.Reader, out io.Writer, message string) error {
	session, _, err := svc.Start(ctx, "")
	if err != nil {
		return err
	}

	if message != "" {
		return askOnce(ctx, svc, out, session.ID, message)
	}

	welcome, _ := session.LastMessage()
	fmt.Fprintf(out, "%s\n\n", welcome.Text)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := askOnce(ctx, svc, out, session.ID, line); err != nil {
			if errors.Is(err, consultation.ErrMessageTooLong) {
				fmt.Fprintf(out, "%v\n\n", err)
				continue
			}
			return err
		}
	}
}

func askOnce(ctx context.Context, svc *consultation.Service, out io.Writer, sessionID, text string) error {
	exchange, err := svc.Submit(ctx, sessionID, text)
	if err != nil {
		return err
	}

	source := exchange.Source
	if exchange.Rule != "" {
		source += "/" + exchange.Rule
	}
	fmt.Fprintf(out, "%s\n\n[stage: %s, questions: %d, source: %s]\n\n",
		exchange.Reply.Text, exchange.Stage, exchange.QuestionCount, source)
	return nil
}

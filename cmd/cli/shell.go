package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/voice-ledger/internal/assistant"
)

const shellHelp = `Введите операцию текстом или команду:
  /confirm        записать операцию, ожидающую подтверждения
  /undo           отменить последнюю операцию
  /history        последние операции
  /backup         резервная копия
  /search ЗАПРОС  поиск
  /find СЛОВО     поиск по описанию
  /quit           выход`

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session; keeps context for confirm and undo",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), shellHelp)
		return runShell(cmd.Context(), ledgerApp.Service, operatorID(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// shellService is the part of the assistant the shell drives.
type shellService interface {
	HandleText(ctx context.Context, userID int64, utterance string) (assistant.Reply, error)
	Confirm(ctx context.Context, userID int64) (assistant.Reply, error)
	Undo(ctx context.Context, userID int64) (assistant.Reply, error)
	History(ctx context.Context, userID int64) (assistant.Reply, error)
	Backup(ctx context.Context, userID int64) (assistant.Reply, error)
	Search(ctx context.Context, userID int64, q string) (assistant.Reply, error)
	Find(ctx context.Context, userID int64, term string) (assistant.Reply, error)
}

func runShell(ctx context.Context, svc shellService, userID int64, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var (
			reply assistant.Reply
			err   error
		)
		command, arg, _ := strings.Cut(line, " ")
		switch command {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, shellHelp)
			continue
		case "/confirm":
			reply, err = svc.Confirm(ctx, userID)
		case "/undo":
			reply, err = svc.Undo(ctx, userID)
		case "/history":
			reply, err = svc.History(ctx, userID)
		case "/backup":
			reply, err = svc.Backup(ctx, userID)
		case "/search":
			reply, err = svc.Search(ctx, userID, arg)
		case "/find":
			reply, err = svc.Find(ctx, userID, arg)
		default:
			reply, err = svc.HandleText(ctx, userID, line)
		}
		fmt.Fprintln(out, reply.Text)
		if err != nil {
			fmt.Fprintln(out, "  ("+err.Error()+")")
		}
	}
}

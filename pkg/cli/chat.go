package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/repository"
	"github.com/m-mizutani/ermine/pkg/usecase/chat"
	"github.com/m-mizutani/ermine/pkg/usecase/memory"
	"github.com/m-mizutani/ermine/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const recallLimit = 3

func chatCommand() *cli.Command {
	var (
		cfg        config
		transcript string
		noStream   bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "transcript",
			Aliases:     []string{"t"},
			Usage:       "Path to save the session transcript (markdown)",
			Sources:     cli.EnvVars("ERMINE_TRANSCRIPT"),
			Destination: &transcript,
		},
		&cli.BoolFlag{
			Name:        "no-stream",
			Usage:       "Wait for the complete reply instead of streaming",
			Sources:     cli.EnvVars("ERMINE_NO_STREAM"),
			Destination: &noStream,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.load(); err != nil {
				return err
			}

			setting, err := cfg.chatSetting()
			if err != nil {
				return err
			}
			params, err := cfg.chatParams()
			if err != nil {
				return err
			}

			uc := chat.New()
			defer uc.CancelAll()

			memSvc, repo, err := cfg.newMemoryService(ctx, uc)
			if err != nil {
				return err
			}
			if repo != nil {
				defer repo.Close()
			}

			if transcript == "" {
				transcript = defaultTranscriptPath()
			}

			session := &chatSession{
				uc:         uc,
				memory:     memSvc,
				setting:    setting,
				params:     params,
				transcript: transcript,
				noStream:   noStream,
				out:        c.Root().Writer,
			}
			return session.run(ctx)
		},
	}
}

type chatSession struct {
	uc         *chat.UseCase
	memory     *memory.Service
	setting    model.ProviderSetting
	params     model.GenerationParams
	transcript string
	noStream   bool
	out        io.Writer
}

func (s *chatSession) run(ctx context.Context) error {
	rl, err := readline.New("> ")
	if err != nil {
		return goerr.Wrap(err, "failed to initialize readline")
	}
	defer rl.Close()

	gateway := repository.NewTranscript(s.transcript)
	handler := chat.NewStreamHandler(gateway)

	fmt.Fprintf(s.out, "Connected to %s (%s). Type 'exit' to quit.\n",
		s.setting.SettingName(), s.params.Model.ID)

	var history []model.Message

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			break
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		if s.memory != nil {
			s.memory.Observe(input)
		}

		userMsg := model.NewTextMessage(model.RoleUser, input)
		history = append(history, userMsg)
		if err := gateway.AppendMessage(ctx, userMsg); err != nil {
			logging.From(ctx).Warn("failed to record user message", "error", err)
		}

		reply, err := s.streamReply(ctx, handler, history)
		fmt.Fprintln(s.out)
		if err != nil {
			if model.IsCancelled(err) {
				fmt.Fprintln(s.out, "(cancelled)")
			} else {
				fmt.Fprintln(s.out, model.UserMessage(err))
			}
		}
		if reply != "" {
			history = append(history, model.NewTextMessage(model.RoleAssistant, reply))
		}
	}

	if s.memory != nil {
		s.memory.Flush()
		s.memory.Wait()
	}
	fmt.Fprintf(s.out, "\nBye.\n")
	return nil
}

// streamReply sends history to the provider and renders the streamed
// reply. Ctrl-C during a stream cancels just that request, not the
// session.
func (s *chatSession) streamReply(ctx context.Context, handler *chat.StreamHandler, history []model.Message) (string, error) {
	taskID := model.NewTaskID()

	// the one-shot path has no task registration, so interrupt it
	// through a request-scoped context instead
	reqCtx, cancelReq := context.WithCancel(ctx)
	defer cancelReq()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			if s.noStream {
				cancelReq()
			} else {
				s.uc.CancelStreaming(taskID)
			}
		case <-done:
		}
	}()
	defer func() {
		signal.Stop(sigCh)
		close(done)
	}()

	request := s.withRecalledMemories(ctx, history)

	var stream iter.Seq2[string, error]
	if s.noStream {
		// replay the one-shot result as a single-chunk stream so the
		// transcript checkpointing path stays identical
		stream = func(yield func(string, error) bool) {
			reply, err := s.uc.GenerateText(reqCtx, s.setting, request, s.params)
			if err != nil {
				yield("", err)
				return
			}
			yield(reply, nil)
		}
	} else {
		stream = s.uc.StreamText(ctx, s.setting, request, s.params, taskID)
	}
	return handler.Consume(ctx, stream, func(chunk string) {
		fmt.Fprint(s.out, chunk)
	})
}

// withRecalledMemories prepends a system message carrying stored
// memories relevant to the latest user input. Recall failures degrade
// to a plain request.
func (s *chatSession) withRecalledMemories(ctx context.Context, history []model.Message) []model.Message {
	if s.memory == nil || len(history) == 0 {
		return history
	}

	query := history[len(history)-1].Text()
	scored, err := s.memory.Recall(ctx, query, recallLimit)
	if err != nil {
		logging.From(ctx).Warn("memory recall failed", "error", err)
		return history
	}
	if len(scored) == 0 {
		return history
	}

	var sb strings.Builder
	sb.WriteString("Things you remember about the user:\n")
	for _, m := range scored {
		sb.WriteString("- ")
		sb.WriteString(m.Embedding.Text)
		sb.WriteString("\n")
	}

	request := make([]model.Message, 0, len(history)+1)
	request = append(request, model.NewTextMessage(model.RoleSystem, sb.String()))
	request = append(request, history...)
	return request
}

func defaultTranscriptPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".config", "ermine", "sessions")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ""
	}
	return filepath.Join(dir, time.Now().Format("20060102-150405")+".md")
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/mockinterview/adapters/stt"
	"github.com/satriahrh/mockinterview/domain"
	"github.com/satriahrh/mockinterview/domain/entities"
	"github.com/satriahrh/mockinterview/internal/config"
	"github.com/satriahrh/mockinterview/usecase"
)

const consoleHelp = `Type an answer and press enter to send it.
  /mic               toggle the microphone
  /camera            toggle the camera
  /end               end the interview
  /feedback N [text] rate the interview from 1 to 5
  /quit              leave`

func newConsoleCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Run an interview session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			cfg.STT.Provider = config.ProviderTyped
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, err := newLogger(flags.debug, zap.WarnLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			typed := stt.NewTypedRecognizer()
			session, err := newSession(cfg, typed, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			renderer := newConsoleRenderer(out)
			defer session.SubscribeSnapshots(renderer.Snapshot)()
			defer session.SubscribeNotices(renderer.Notice)()

			fmt.Fprintf(out, "Interview for %s (%s)\n%s\n", cfg.Session.Role, cfg.Session.Domain, consoleHelp)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return session.Run(ctx)
			})
			g.Go(func() error {
				defer cancel()
				return readConsole(ctx, cmd.InOrStdin(), out, session, typed)
			})
			return g.Wait()
		},
	}
}

// dictationSession is the part of the session the console drives
type dictationSession interface {
	StartDictation(ctx context.Context) error
	StopDictation(ctx context.Context) error
	ToggleMicrophone(ctx context.Context) error
	ToggleCamera(ctx context.Context) error
	EndInterview(ctx context.Context) error
	SubmitFeedback(ctx context.Context, feedback entities.Feedback) error
}

// typist feeds typed text into an open recognition stream
type typist interface {
	Type(line string) bool
}

// readConsole handles input lines until EOF, /quit or ctx is cancelled
func readConsole(ctx context.Context, in io.Reader, out io.Writer, session dictationSession, keys typist) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(ctx, line, session, keys)
			if err != nil {
				fmt.Fprintln(out, "!", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, line string, session dictationSession, keys typist) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, dictate(ctx, line, session, keys)
	}

	command, rest, _ := strings.Cut(line, " ")
	switch command {
	case "/quit":
		return true, nil
	case "/mic":
		return false, session.ToggleMicrophone(ctx)
	case "/camera":
		return false, session.ToggleCamera(ctx)
	case "/end":
		return false, session.EndInterview(ctx)
	case "/feedback":
		feedback, err := parseFeedback(rest)
		if err != nil {
			return false, err
		}
		return false, session.SubmitFeedback(ctx, feedback)
	default:
		return false, fmt.Errorf("unknown command %s", command)
	}
}

// dictate speaks line through the typed recognizer and sends it
func dictate(ctx context.Context, line string, session dictationSession, keys typist) error {
	if err := session.StartDictation(ctx); err != nil {
		return err
	}
	if !keys.Type(line) {
		return fmt.Errorf("dictation is not open")
	}
	return session.StopDictation(ctx)
}

func parseFeedback(args string) (entities.Feedback, error) {
	ratingText, comments, _ := strings.Cut(strings.TrimSpace(args), " ")
	rating, err := strconv.Atoi(ratingText)
	if err != nil {
		return entities.Feedback{}, fmt.Errorf("usage: /feedback N [comments]")
	}
	feedback := entities.Feedback{Rating: rating, Comments: strings.TrimSpace(comments)}
	return feedback, feedback.Validate()
}

// consoleRenderer prints transcript turns and notices as they appear
type consoleRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	turns   int
	status  entities.SessionStatus
	failure string
	avatar  uint64
	mic     bool

	dim         lipgloss.Style
	interviewer lipgloss.Style
	candidate   lipgloss.Style
	levels      map[domain.NoticeLevel]lipgloss.Style
}

// newConsoleRenderer styles output only when out is a terminal
func newConsoleRenderer(out io.Writer) *consoleRenderer {
	styles := lipgloss.NewRenderer(out)
	return &consoleRenderer{
		out:         out,
		mic:         true,
		dim:         styles.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		interviewer: styles.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		candidate:   styles.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")),
		levels: map[domain.NoticeLevel]lipgloss.Style{
			domain.NoticeInfo:    styles.NewStyle().Foreground(lipgloss.Color("#3B82F6")),
			domain.NoticeWarning: styles.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
			domain.NoticeError:   styles.NewStyle().Foreground(lipgloss.Color("#EF4444")),
		},
	}
}

func (r *consoleRenderer) Snapshot(snapshot usecase.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snapshot.Status != r.status || snapshot.Failure != r.failure {
		r.status, r.failure = snapshot.Status, snapshot.Failure
		line := "[" + string(snapshot.Status) + "]"
		if snapshot.Failure != "" {
			line += " " + snapshot.Failure
		}
		fmt.Fprintln(r.out, r.dim.Render(line))
	}

	for _, turn := range snapshot.Turns[min(r.turns, len(snapshot.Turns)):] {
		speaker := r.candidate.Render("You:")
		if turn.Speaker == entities.SpeakerAI {
			speaker = r.interviewer.Render("Interviewer:")
		}
		fmt.Fprintln(r.out, speaker, turn.Text)
	}
	r.turns = len(snapshot.Turns)

	if snapshot.Avatar != nil && snapshot.Avatar.Seq != r.avatar {
		r.avatar = snapshot.Avatar.Seq
		fmt.Fprintln(r.out, r.dim.Render("(video) "+snapshot.Avatar.URL))
	}

	if mic := snapshot.Devices.MicrophoneEnabled; mic != r.mic {
		r.mic = mic
		fmt.Fprintln(r.out, r.dim.Render("(microphone "+onOff(mic)+")"))
	}
}

func (r *consoleRenderer) Notice(notice domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.levels[notice.Level].Render("* "+string(notice.Level)+": "+notice.Message))
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

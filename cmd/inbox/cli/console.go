package cli

import (
	"AgentDesk/entity"
	"AgentDesk/internal/conversation"
	"AgentDesk/internal/inbox"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const consoleHelp = `commands:
  ls                 list conversations (* new, > open)
  open <n|id>        open a conversation and mark it read
  show               print the open conversation
  take               take the open conversation over from the agent
  release            hand it back to the agent
  say <text>         send a WhatsApp message (conversation must be taken)
  poll               check for updates now
  agent <name>       switch agent
  quit               leave`

var consoleCmd = &cobra.Command{
	Use:   "console <agent-name>",
	Short: "Follow and take over the conversations of one agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	in := bufio.NewReader(os.Stdin)
	out := cmd.OutOrStdout()
	log := opts.logger()

	client, err := opts.connect(ctx, in, out, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout(context.WithoutCancel(ctx)) }()

	agents, err := client.ListAgents(ctx)
	if err != nil {
		return err
	}

	session := inbox.NewSession(client, opts.username, time.Duration(opts.pollSec)*time.Second, log)
	c := &console{session: session, agents: agents, out: out, daysBack: opts.daysBack}
	if err = c.selectAgent(ctx, args[0]); err != nil {
		return err
	}
	session.Poller().Start(ctx)
	defer session.ClearAgent()

	c.printList()
	fmt.Fprintln(out, "type help for commands")

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := in.ReadString('\n')
			if line != "" {
				lines <- line
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.exec(ctx, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// inboxSession is the part of inbox.Session the console drives.
type inboxSession interface {
	SelectAgent(ctx context.Context, agent entity.Agent, from, to time.Time) error
	PollOnce(ctx context.Context) (int, error)
	Select(ctx context.Context, id string) error
	Take(ctx context.Context) error
	Release(ctx context.Context) error
	SetCompose(text string)
	Send(ctx context.Context) (*entity.Message, error)
	Snapshot() inbox.Snapshot
}

type console struct {
	session  inboxSession
	agents   []entity.Agent
	out      io.Writer
	daysBack int
	now      func() time.Time
}

func (c *console) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// exec runs one command line and reports whether the console should quit.
func (c *console) exec(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "":
		return false, nil
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
	case "ls", "list":
		c.printList()
	case "open":
		id, err := c.resolve(arg)
		if err != nil {
			return false, err
		}
		if err = c.session.Select(ctx, id); err != nil {
			return false, err
		}
		c.printConversation()
	case "show":
		c.printConversation()
	case "take":
		if err := c.session.Take(ctx); err != nil {
			return false, err
		}
		c.printLock()
	case "release":
		if err := c.session.Release(ctx); err != nil {
			return false, err
		}
		c.printLock()
	case "say":
		c.session.SetCompose(arg)
		msg, err := c.session.Send(ctx)
		if msg != nil {
			fmt.Fprintf(c.out, "[%s] %s\n", msg.Status, msg.Text)
		}
		return false, err
	case "poll":
		n, err := c.session.PollOnce(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "%d conversation(s) updated\n", n)
		if n > 0 {
			c.printList()
		}
	case "agent":
		if err := c.selectAgent(ctx, arg); err != nil {
			return false, err
		}
		c.printList()
	case "quit", "exit", "q":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, type help", name)
	}
	return false, nil
}

func (c *console) selectAgent(ctx context.Context, name string) error {
	agent := findAgent(c.agents, name)
	if agent == nil {
		return fmt.Errorf("agent %q not found", name)
	}
	now := c.clock()
	return c.session.SelectAgent(ctx, *agent, now.AddDate(0, 0, -c.daysBack), now)
}

func findAgent(agents []entity.Agent, name string) *entity.Agent {
	for i := range agents {
		if strings.EqualFold(agents[i].Name, name) {
			return &agents[i]
		}
	}
	return nil
}

// resolve accepts a 1-based list position or a conversation id.
func (c *console) resolve(arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("open needs a conversation number or id")
	}
	snap := c.session.Snapshot()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(snap.Conversations) {
			return "", fmt.Errorf("no conversation #%d", n)
		}
		return snap.Conversations[n-1].ID, nil
	}
	return arg, nil
}

func (c *console) printList() {
	snap := c.session.Snapshot()
	if snap.Agent == nil {
		fmt.Fprintln(c.out, "no agent selected")
		return
	}
	fmt.Fprintf(c.out, "%s: %d conversation(s), checked %s\n",
		snap.Agent.Name, len(snap.Conversations), conversation.FormatTime(snap.Checkpoint))
	for i, conv := range snap.Conversations {
		mark := " "
		if snap.Fresh[conv.ID] {
			mark = "*"
		}
		if conv.ID == snap.Selected {
			mark = ">"
		}
		fmt.Fprintf(c.out, "%s %3d. %-30s %3d  %s  %s\n",
			mark, i+1, conv.ID, conv.Unread, conv.LastMessageTime.Local().Format("01-02 15:04"), conv.LastMessage)
	}
}

func (c *console) printConversation() {
	snap := c.session.Snapshot()
	var conv *entity.Conversation
	for i := range snap.Conversations {
		if snap.Conversations[i].ID == snap.Selected {
			conv = &snap.Conversations[i]
		}
	}
	if conv == nil {
		fmt.Fprintln(c.out, "no conversation open")
		return
	}
	fmt.Fprintf(c.out, "== %s (%d messages)\n", conv.ID, len(conv.Messages))
	for _, m := range conv.Messages {
		fmt.Fprintf(c.out, "%s %-5s %s\n", m.Timestamp.Local().Format("15:04:05"), m.Direction, m.Text)
	}
	for _, p := range snap.Pending {
		if p.ConversationID == conv.ID {
			fmt.Fprintf(c.out, "%s %-5s %s [%s]\n",
				p.Message.Timestamp.Local().Format("15:04:05"), p.Message.Direction, p.Message.Text, p.Message.Status)
		}
	}
	c.printLock()
}

func (c *console) printLock() {
	lock := c.session.Snapshot().Lock
	switch {
	case lock == nil:
		fmt.Fprintln(c.out, "handoff: unknown")
	case lock.IsTaken && lock.TakenBy != nil:
		fmt.Fprintf(c.out, "handoff: taken by %s\n", *lock.TakenBy)
	case lock.IsTaken:
		fmt.Fprintln(c.out, "handoff: taken")
	default:
		fmt.Fprintln(c.out, "handoff: agent is answering")
	}
}

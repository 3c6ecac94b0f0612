package bork

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Step names a side-effecting action the Gate is asked about.
type Step string

const (
	StepBroadcastTx1 Step = "broadcast_tx1"
	StepBroadcastTx2 Step = "broadcast_tx2"
	StepReply        Step = "reply"
)

// Gate is consulted before every broadcast and reply. A denial leaves the
// message in its resumable failed status.
type Gate interface {
	Approve(ctx context.Context, step Step, msg Message) (bool, error)
}

type AutoApprove struct{}

var _ Gate = AutoApprove{}

func (AutoApprove) Approve(ctx context.Context, step Step, msg Message) (bool, error) {
	return true, nil
}

// PromptGate asks an operator on a terminal, one y/n line per step.
type PromptGate struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

var _ Gate = &PromptGate{}

func NewPromptGate(in io.Reader, out io.Writer) *PromptGate {
	return &PromptGate{in: bufio.NewReader(in), out: out}
}

func (g *PromptGate) Approve(ctx context.Context, step Step, msg Message) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(g.out, "%s for message %s (@%s: %q)? [y/N] ", step, msg.ID, msg.UserHandle, msg.Text)
	line, err := g.in.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

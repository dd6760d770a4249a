package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
)

// Player plays ranges of a file through an ffplay subprocess. At most one
// playback runs at a time; starting another stops the current one.
type Player struct {
	bin string

	mu      sync.Mutex
	current *Playback
}

// NewPlayer returns a Player that runs bin, or "ffplay" when bin is empty.
func NewPlayer(bin string) *Player {
	if bin == "" {
		bin = "ffplay"
	}
	return &Player{bin: bin}
}

// Playback is one running ffplay process.
type Playback struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Wait blocks until playback ends. A playback ended by Stop returns nil.
func (pb *Playback) Wait() error {
	<-pb.done
	return pb.err
}

// Stop ends playback.
func (pb *Playback) Stop() {
	pb.cancel()
}

// Play starts playing path from fromSec for durSec seconds. durSec <= 0
// plays to the end of the file.
func (p *Player) Play(path string, fromSec, durSec float64) (*Playback, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.current.Stop()
		p.current = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, p.bin, playArgs(path, fromSec, durSec)...)
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", p.bin, err)
	}

	pb := &Playback{cancel: cancel, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		if err != nil && !errors.Is(ctx.Err(), context.Canceled) {
			pb.err = fmt.Errorf("%s: %w", p.bin, err)
		}
		cancel()
		close(pb.done)
	}()
	p.current = pb
	return pb, nil
}

// Run plays a range and blocks until it finishes or is stopped.
func (p *Player) Run(path string, fromSec, durSec float64) error {
	pb, err := p.Play(path, fromSec, durSec)
	if err != nil {
		return err
	}
	return pb.Wait()
}

// Stop ends the current playback, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Stop()
		p.current = nil
	}
}

func playArgs(path string, fromSec, durSec float64) []string {
	args := []string{"-ss", strconv.FormatFloat(max(0, fromSec), 'f', 2, 64)}
	if durSec > 0 {
		args = append(args, "-t", strconv.FormatFloat(durSec, 'f', 2, 64))
	}
	return append(args, "-autoexit", "-nodisp", "-loglevel", "quiet", path)
}

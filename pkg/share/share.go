// Package share delivers share text through a fallback chain: a configured
// native share command, then the system clipboard, then manual copy.
package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/atotto/clipboard"
)

// Method is how the text ended up being delivered.
type Method string

const (
	MethodCommand   Method = "command"
	MethodClipboard Method = "clipboard"
	MethodManual    Method = "manual"
)

// Logger is the subset of logrus used here.
type Logger interface {
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}

// Sharer tries each delivery method in turn. The zero value goes straight
// to the clipboard.
type Sharer struct {
	// Command is a shell-style command line that receives the text on stdin,
	// e.g. "termux-share -a send". Empty skips this step.
	Command string
	// Out receives the text when nothing else worked.
	Out io.Writer
	Log Logger

	writeClipboard func(string) error
	runCommand     func(ctx context.Context, argv []string, text string) error
}

// Share delivers text and reports which method succeeded. It only fails when
// even the manual fallback could not be written.
func (s *Sharer) Share(ctx context.Context, text string) (Method, error) {
	log := s.Log
	if log == nil {
		log = nopLogger{}
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("nothing to share")
	}

	if argv := strings.Fields(s.Command); len(argv) > 0 {
		run := s.runCommand
		if run == nil {
			run = runCommand
		}
		err := run(ctx, argv, text)
		if err == nil {
			return MethodCommand, nil
		}
		log.Debugf("[share] command %q failed: %v", s.Command, err)
	}

	write := s.writeClipboard
	if write == nil {
		write = writeClipboard
	}
	err := write(text)
	if err == nil {
		return MethodClipboard, nil
	}
	log.Debugf("[share] clipboard unavailable: %v", err)

	if s.Out == nil {
		return "", errors.New("no share method available")
	}
	if _, err := fmt.Fprintf(s.Out, "Copy this text to share:\n\n%s\n", text); err != nil {
		return "", err
	}
	return MethodManual, nil
}

func writeClipboard(text string) error {
	if clipboard.Unsupported {
		return errors.New("clipboard not supported on this system")
	}
	return clipboard.WriteAll(text)
}

func runCommand(ctx context.Context, argv []string, text string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

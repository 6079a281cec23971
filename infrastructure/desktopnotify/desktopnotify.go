// Package desktopnotify implements the notify.Notifier port with the
// freedesktop notify-send tool. Missing tooling means the platform is
// unsupported and the scheduler stays idle; nothing here is fatal.
package desktopnotify

import (
	"fmt"
	"os/exec"

	"github.com/jrazmi/lexprep/core/notify"
	"github.com/jrazmi/lexprep/sdk/logger"
)

type Notifier struct {
	log     *logger.Logger
	binPath string
}

func New(log *logger.Logger) *Notifier {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		log.Warn("notify-send not found, notifications unavailable")
	}
	return &Notifier{log: log, binPath: path}
}

func (n *Notifier) Supported() bool {
	return n.binPath != ""
}

// Permission reports granted whenever the tool exists; the desktop has
// no separate permission prompt equivalent.
func (n *Notifier) Permission() notify.Permission {
	if n.binPath == "" {
		return notify.PermissionDenied
	}
	return notify.PermissionGranted
}

func (n *Notifier) Send(msg notify.Notification) error {
	if n.binPath == "" {
		return fmt.Errorf("notify-send unavailable")
	}

	args := []string{
		"--app-name=lexprep",
		fmt.Sprintf("--expire-time=%d", msg.DismissAfter.Milliseconds()),
	}
	if msg.RequireInteraction {
		args = append(args, "--urgency=critical")
	}
	args = append(args, msg.Title, msg.Body)

	if err := exec.Command(n.binPath, args...).Run(); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	n.log.Debug("sent desktop notification", "tag", msg.Tag, "title", msg.Title)
	return nil
}

package notify_libnotify

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const appName = "apt-publisher"

type Options struct {
	Urgency string
	Expire  time.Duration
}

type Notifier struct {
	soft bool
	bin  string
	opt  Options
}

func New(opt Options) *Notifier     { return &Notifier{bin: "notify-send", opt: opt} }
func NewSoft(opt Options) *Notifier { return &Notifier{soft: true, bin: "notify-send", opt: opt} }

func (n *Notifier) Args(title, body, url string) []string {
	if strings.TrimSpace(url) != "" {
		if body == "" {
			body = url
		} else {
			body = body + "\n" + url
		}
	}

	args := []string{"--app-name=" + appName}
	if n.opt.Urgency != "" {
		args = append(args, "--urgency="+n.opt.Urgency)
	}
	if n.opt.Expire > 0 {
		args = append(args, "--expire-time="+strconv.Itoa(int(n.opt.Expire/time.Millisecond)))
	}
	return append(args, title, body)
}

func (n *Notifier) Notify(ctx context.Context, title, body, url string) error {
	cmd := exec.CommandContext(ctx, n.bin, n.Args(title, body, url)...)
	if err := cmd.Run(); err != nil {
		if n.soft {
			return nil
		}
		return err
	}
	return nil
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, string, string, string) error { return nil }

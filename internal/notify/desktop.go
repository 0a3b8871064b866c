package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
)

// Runner executes a command. Replaced in tests.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, out)
	}
	return nil
}

// Desktop shows notifications with notify-send (Linux) or osascript (macOS).
type Desktop struct {
	AppName string
	GOOS    string
	Run     Runner
}

// NewDesktop returns a Desktop notifier for the current OS.
func NewDesktop() *Desktop {
	return &Desktop{AppName: "notebridge", GOOS: runtime.GOOS, Run: execRunner}
}

func (d *Desktop) Notify(ctx context.Context, n Notification) error {
	msg := Excerpt(n.Message, 240)
	switch d.GOOS {
	case "darwin":
		script := "display notification " + strconv.Quote(msg) + " with title " + strconv.Quote(n.Title)
		return d.Run(ctx, "osascript", "-e", script)
	case "linux", "freebsd", "openbsd", "netbsd":
		return d.Run(ctx, "notify-send", "--app-name="+d.AppName, n.Title, msg)
	default:
		return fmt.Errorf("desktop notifications not supported on %s", d.GOOS)
	}
}

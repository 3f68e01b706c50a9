package notify

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/jkaberg/apcups-hass/internal/domain"
	"github.com/jkaberg/apcups-hass/internal/nis"
	"github.com/sirupsen/logrus"
)

// HookNotifier runs an operator supplied command whenever the UPS switches
// between line and battery power. The command is run through /bin/sh -c and
// receives the event and the latest readings in its environment:
//
//	UPS_EVENT     onbattery | online
//	UPS_BCHARGE   battery charge in percent
//	UPS_TIMELEFT  estimated runtime in minutes
//	UPS_LINEV     line voltage
//
// The command is bounded by a timeout so a hanging script cannot stall the
// polling loop. Failures are logged and otherwise ignored.
type HookNotifier struct {
	command string
	timeout time.Duration
	logger  *logrus.Logger

	run func(ctx context.Context, command string, env []string) error
}

// NewHookNotifier returns a notifier for command.
func NewHookNotifier(command string, timeout time.Duration, logger *logrus.Logger) *HookNotifier {
	return &HookNotifier{
		command: command,
		timeout: timeout,
		logger:  logger,
		run:     runShell,
	}
}

// Notify runs the hook for event. PowerNone is a no-op.
func (n *HookNotifier) Notify(event domain.PowerEvent, snap nis.Snapshot) {
	if n == nil || event == domain.PowerNone || n.command == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	env := []string{
		"UPS_EVENT=" + string(event),
		"UPS_BCHARGE=" + strconv.Itoa(snap.Value(nis.BatteryCharge)),
		"UPS_TIMELEFT=" + strconv.Itoa(snap.Value(nis.TimeLeft)),
		"UPS_LINEV=" + strconv.Itoa(snap.Value(nis.LineVoltage)),
	}

	log := n.logger.WithField("event", event)
	if err := n.run(ctx, n.command, env); err != nil {
		log.WithError(err).Warn("power event hook failed")
		return
	}
	log.Info("power event hook ran")
}

func runShell(ctx context.Context, command string, env []string) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Env = append(os.Environ(), env...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}

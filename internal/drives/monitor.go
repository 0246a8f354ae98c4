package drives

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"discripper/internal/disc"
	"discripper/internal/logging"
)

// LoadedHandler is invoked once per disc insertion.
type LoadedHandler func(ctx context.Context, devpath string) error

// TrayReader reports the tray state of a device.
type TrayReader interface {
	TrayStatus(devpath string) (disc.TrayStatus, error)
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	// Devices lists the device paths polled for tray changes.
	Devices func(ctx context.Context) ([]string, error)
	// PollInterval enables tray polling when positive.
	PollInterval time.Duration
	// Netlink enables udev media events.
	Netlink bool
	// Paused suppresses callbacks while it returns true.
	Paused func() bool
}

// Monitor watches every optical drive for newly loaded media. Udev change
// events are the primary signal; tray polling catches drives whose kernel
// driver never emits them. Both paths share one edge detector so a disc
// fires the handler once.
type Monitor struct {
	logger  *slog.Logger
	tray    TrayReader
	handler LoadedHandler
	opts    MonitorOptions

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
	last    map[string]disc.TrayStatus
	wg      sync.WaitGroup
}

// NewMonitor builds a monitor. Start must be called to begin watching.
func NewMonitor(logger *slog.Logger, tray TrayReader, handler LoadedHandler, opts MonitorOptions) *Monitor {
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "drive-monitor"),
		tray:    tray,
		handler: handler,
		opts:    opts,
		last:    make(map[string]disc.TrayStatus),
	}
}

// Start begins listening. Netlink connection failures are logged and the
// monitor falls back to polling alone.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	m.quit = make(chan struct{})
	m.running = true
	quit := m.quit

	if m.opts.Netlink {
		conn := new(netlink.UEventConn)
		if err := conn.Connect(netlink.UdevEvent); err != nil {
			logging.WarnWithContext(m.logger, "failed to connect to netlink socket; relying on tray polling", "netlink_connect_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "ensure the daemon may open NETLINK_KOBJECT_UEVENT sockets"),
				logging.String(logging.FieldImpact, "disc detection limited to polling"),
			)
		} else {
			m.conn = conn
			m.wg.Add(1)
			go m.netlinkLoop(ctx, conn, quit)
		}
	}

	if m.polling() {
		m.wg.Add(1)
		go m.pollLoop(ctx, quit)
	}

	m.logger.Info("drive monitor started",
		logging.String(logging.FieldEventType, "drive_monitor_started"),
		logging.Bool("netlink", m.conn != nil),
		logging.Duration("poll_interval", m.opts.PollInterval),
	)
	return nil
}

// Stop halts both watchers and waits for them to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.quit)
	m.quit = nil
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("drive monitor stopped", logging.String(logging.FieldEventType, "drive_monitor_stopped"))
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) netlinkLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	defer m.wg.Done()
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, mediaMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			devpath := eventDevice(uevent)
			if devpath == "" {
				m.logger.Debug("ignoring event without device name", logging.String("kobj", uevent.KObj))
				continue
			}
			m.observe(ctx, devpath, disc.TrayDiscOK, sourceNetlink)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "disc detection may be affected"),
			)
		}
	}
}

func (m *Monitor) pollLoop(ctx context.Context, quit <-chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()
	for {
		m.PollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case <-ticker.C:
		}
	}
}

// PollOnce samples the tray of every known device.
func (m *Monitor) PollOnce(ctx context.Context) {
	devices, err := m.opts.Devices(ctx)
	if err != nil {
		m.logger.Debug("drive list unavailable for polling", logging.Error(err))
		return
	}
	for _, devpath := range devices {
		status, err := m.tray.TrayStatus(devpath)
		if err != nil {
			m.logger.Debug("tray status read failed", logging.Device(devpath), logging.Error(err))
			continue
		}
		m.observe(ctx, devpath, status, sourcePoll)
	}
}

// observe records a tray state and fires the handler on a transition into
// the loaded state.
func (m *Monitor) observe(ctx context.Context, devpath string, status disc.TrayStatus, source string) {
	m.mu.Lock()
	previous, seen := m.last[devpath]
	m.last[devpath] = status
	m.mu.Unlock()

	if !status.Ready() {
		return
	}
	switch source {
	case sourcePoll:
		// The first sample after startup is left to the startup scan.
		if !seen || previous.Ready() {
			return
		}
	case sourceNetlink:
		if m.polling() && seen && previous.Ready() {
			return
		}
	}
	if m.opts.Paused != nil && m.opts.Paused() {
		m.logger.Debug("disc detection paused", logging.Device(devpath))
		return
	}

	m.logger.Info("disc media detected",
		logging.String(logging.FieldEventType, "disc_detected"),
		logging.Device(devpath),
		logging.String("source", source),
	)
	if m.handler == nil {
		return
	}
	if err := m.handler(ctx, devpath); err != nil {
		logging.WarnWithContext(m.logger, "disc detection handler failed", "disc_handler_failed",
			logging.Error(err),
			logging.Device(devpath),
			logging.String(logging.FieldErrorHint, "check daemon logs for the spawn failure"),
			logging.String(logging.FieldImpact, "disc not processed"),
		)
	}
}

const (
	sourcePoll    = "poll"
	sourceNetlink = "netlink"
)

func (m *Monitor) polling() bool {
	return m.opts.PollInterval > 0 && m.opts.Devices != nil && m.tray != nil
}

func mediaMatcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":      "block",
			"ID_CDROM":       "1",
			"ID_CDROM_MEDIA": "1",
		},
	})
	return rules
}

func eventDevice(uevent netlink.UEvent) string {
	if devname := strings.TrimSpace(uevent.Env["DEVNAME"]); devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}

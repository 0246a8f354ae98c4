package testsupport

import (
	"context"
	"sync"

	"discripper/internal/disc"
)

// FakeController is an in-memory disc.Controller. Mount returns MountDir
// for every device.
type FakeController struct {
	mu sync.Mutex

	Tray     disc.TrayStatus
	TrayErr  error
	Props    map[string]disc.Properties
	PropsErr error
	MountDir string
	MountErr error
	KillErr  error

	Mounted   []string
	Unmounted []string
	Ejected   []string
	Killed    []int
}

// NewFakeController returns a controller reporting a loaded disc that
// mounts at mountDir.
func NewFakeController(mountDir string) *FakeController {
	return &FakeController{
		Tray:     disc.TrayDiscOK,
		Props:    make(map[string]disc.Properties),
		MountDir: mountDir,
	}
}

func (f *FakeController) Mount(_ context.Context, devpath, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MountErr != nil {
		return "", f.MountErr
	}
	f.Mounted = append(f.Mounted, devpath)
	return f.MountDir, nil
}

func (f *FakeController) Unmount(_ context.Context, mountpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Unmounted = append(f.Unmounted, mountpoint)
	return nil
}

func (f *FakeController) Eject(_ context.Context, devpath string, _ disc.EjectMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ejected = append(f.Ejected, devpath)
	return nil
}

func (f *FakeController) TrayStatus(string) (disc.TrayStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Tray, f.TrayErr
}

func (f *FakeController) Properties(_ context.Context, devpath string) (disc.Properties, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PropsErr != nil {
		return nil, f.PropsErr
	}
	if props, ok := f.Props[devpath]; ok {
		return props, nil
	}
	return disc.Properties{"DEVNAME": devpath, "ID_CDROM": "1", "ID_CDROM_MEDIA": "1"}, nil
}

func (f *FakeController) Kill(pid int, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Killed = append(f.Killed, pid)
	return f.KillErr
}

// EjectCount returns how many ejects were requested.
func (f *FakeController) EjectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Ejected)
}

package service

import (
	"fmt"
	"os"

	"github.com/kardianos/service"
)

const serviceName = "com.xstorage.bridge"

// ServiceManager installs and controls the bridge daemon as a system service.
type ServiceManager struct {
	service service.Service
	daemon  *Daemon
}

// NewServiceManager wraps daemon in a platform service definition that
// re-executes this binary with `service run`.
func NewServiceManager(daemon *Daemon) (*ServiceManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: "xstorage volume bridge",
		Description: "Answers storage volume queries (SD card and USB mount paths) over a local socket",
		Executable:  execPath,
		Arguments:   []string{"service", "run"},
		Option: service.KeyValue{
			"RunAtLoad": true,
			"KeepAlive": true,
			"Restart":   "on-failure",
		},
	}

	svc, err := service.New(daemon, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return &ServiceManager{service: svc, daemon: daemon}, nil
}

func (sm *ServiceManager) Install() error {
	return sm.service.Install()
}

func (sm *ServiceManager) Uninstall() error {
	return sm.service.Uninstall()
}

func (sm *ServiceManager) Start() error {
	return sm.service.Start()
}

func (sm *ServiceManager) Stop() error {
	return sm.service.Stop()
}

// Status reports the service state as a display string.
func (sm *ServiceManager) Status() (string, error) {
	status, err := sm.service.Status()
	if err != nil {
		return statusString(service.StatusUnknown), err
	}
	return statusString(status), nil
}

// Run blocks serving the daemon until the service manager stops it.
func (sm *ServiceManager) Run() error {
	return sm.service.Run()
}

func statusString(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Running"
	case service.StatusStopped:
		return "Stopped"
	case service.StatusUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Status(%d)", int(status))
	}
}

// ServiceConfigPath returns where the platform keeps the service definition.
func ServiceConfigPath() string {
	switch service.Platform() {
	case "linux-systemd":
		return "/etc/systemd/system/" + serviceName + ".service"
	case "darwin-launchd":
		return "/Library/LaunchDaemons/" + serviceName + ".plist"
	case "windows-service":
		return "Registry: HKEY_LOCAL_MACHINE\\SYSTEM\\CurrentControlSet\\Services\\" + serviceName
	default:
		return "Unknown platform"
	}
}

// Package system inspects the host for what the daemon needs: the BlueZ
// tools and the configured controller.
package system

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

type DependencyStatus struct {
	Name           string `json:"name"`
	Installed      bool   `json:"installed"`
	Path           string `json:"path"`
	Version        string `json:"version"`
	InstallCommand string `json:"install_command"`
}

type AdapterStatus struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
	Address string `json:"address,omitempty"`
}

type Report struct {
	OS           string             `json:"os"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Adapter      AdapterStatus      `json:"adapter"`
}

// sysfsRoot is where controllers are listed on Linux.
var sysfsRoot = "/sys/class/bluetooth"

// bluetoothdPaths are checked when bluetoothd is not on PATH, which is the
// usual case since distros install it under libexec.
var bluetoothdPaths = []string{
	"/usr/libexec/bluetooth/bluetoothd",
	"/usr/lib/bluetooth/bluetoothd",
	"/usr/sbin/bluetoothd",
}

func Check(adapterName string) Report {
	return Report{
		OS:           detectOS(),
		Dependencies: []DependencyStatus{CheckBluetoothd(), CheckBluetoothctl()},
		Adapter:      CheckAdapter(adapterName),
	}
}

func CheckBluetoothd() DependencyStatus {
	status := DependencyStatus{
		Name:           "bluetoothd",
		InstallCommand: installCommand(detectOS()),
	}

	searchPaths := bluetoothdPaths
	if p, err := exec.LookPath("bluetoothd"); err == nil {
		searchPaths = append([]string{p}, searchPaths...)
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		status.Installed = true
		status.Path = p
		if out, err := exec.Command(p, "--version").Output(); err == nil {
			status.Version = strings.TrimSpace(string(out))
		}
		break
	}
	return status
}

func CheckBluetoothctl() DependencyStatus {
	status := DependencyStatus{
		Name:           "bluetoothctl",
		InstallCommand: installCommand(detectOS()),
	}

	path, err := exec.LookPath("bluetoothctl")
	if err != nil {
		return status
	}
	status.Installed = true
	status.Path = path

	if out, err := exec.Command(path, "--version").Output(); err == nil {
		fields := strings.Fields(string(out))
		if len(fields) > 0 {
			status.Version = fields[len(fields)-1]
		}
	}
	return status
}

// CheckAdapter looks the controller up in sysfs. The address file is only
// present on newer kernels, so a missing one leaves Address empty.
func CheckAdapter(name string) AdapterStatus {
	status := AdapterStatus{Name: name}
	if name == "" {
		return status
	}
	dir := filepath.Join(sysfsRoot, name)
	if _, err := os.Stat(dir); err != nil {
		return status
	}
	status.Present = true
	if b, err := os.ReadFile(filepath.Join(dir, "address")); err == nil {
		status.Address = strings.ToUpper(strings.TrimSpace(string(b)))
	}
	return status
}

func installCommand(osID string) string {
	switch osID {
	case "debian", "ubuntu", "raspbian":
		return "sudo apt install bluez"
	case "fedora":
		return "sudo dnf install bluez"
	case "arch":
		return "sudo pacman -S bluez bluez-utils"
	case "alpine":
		return "sudo apk add bluez"
	default:
		return "# Install BlueZ using your package manager"
	}
}

func detectOS() string {
	if runtime.GOOS != "linux" {
		return runtime.GOOS
	}

	if file, err := os.Open("/etc/os-release"); err == nil {
		defer file.Close()
		if id := parseOSRelease(file); id != "" {
			return id
		}
	}

	if _, err := os.Stat("/etc/debian_version"); err == nil {
		return "debian"
	}
	if _, err := os.Stat("/etc/fedora-release"); err == nil {
		return "fedora"
	}
	if _, err := os.Stat("/etc/arch-release"); err == nil {
		return "arch"
	}
	return "linux"
}

func parseOSRelease(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "ID=") {
			id := strings.TrimPrefix(line, "ID=")
			return strings.ToLower(strings.Trim(id, "\""))
		}
	}
	return ""
}

func GetOSInfo() string {
	return detectOS()
}

package process

import "strings"

// Denylist filters OS and background processes out of the heuristic.
// All comparisons are case-insensitive.
type Denylist struct {
	exact     map[string]struct{}
	substring []string
}

func NewDenylist(exact, substring []string) *Denylist {
	d := &Denylist{exact: make(map[string]struct{}, len(exact))}
	for _, name := range exact {
		d.exact[strings.ToLower(name)] = struct{}{}
	}
	for _, s := range substring {
		d.substring = append(d.substring, strings.ToLower(s))
	}
	return d
}

// DefaultDenylist covers shells, desktop plumbing and the usual Windows service hosts.
func DefaultDenylist() *Denylist {
	exact := []string{
		// shells and our own tooling
		"bash", "zsh", "fish", "sh", "dash", "tcsh", "ksh", "ps", "focustrack",
		// linux session plumbing
		"goa-daemon", "goa-identity-service", "gvfsd", "dbus-daemon", "dbus-broker", "systemd",
		"pulseaudio", "pipewire", "wireplumber", "bluetoothd", "ssh-agent", "gpg-agent",
		"dconf-service", "xorg", "xwayland", "kthreadd", "launchd", "kernel_task", "windowserver",
		// windows background processes
		"svchost.exe", "dwm.exe", "winlogon.exe", "csrss.exe", "smss.exe", "wininit.exe",
		"services.exe", "lsass.exe", "conhost.exe", "audiodg.exe", "dllhost.exe", "rundll32.exe",
		"taskhost.exe", "taskhostw.exe", "sihost.exe", "ctfmon.exe", "wmiprvse.exe",
		"searchindexer.exe", "searchprotocolhost.exe", "searchfilterhost.exe", "runtimebroker.exe",
		"spoolsv.exe", "registry", "system", "idle", "memory compression", "secure system",
		"system interrupts",
	}
	substring := []string{
		"service", "helper", "update", "installer", "setup", "background", "kworker", "host",
	}
	return NewDenylist(exact, substring)
}

// Denied reports whether name is excluded by an exact or substring rule.
func (d *Denylist) Denied(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || strings.HasPrefix(n, ".") {
		return true
	}
	if _, ok := d.exact[n]; ok {
		return true
	}
	for _, s := range d.substring {
		if strings.Contains(n, s) {
			return true
		}
	}
	return false
}

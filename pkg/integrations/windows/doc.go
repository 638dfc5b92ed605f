// Package windows resolves the foreground window's owning process through the Win32 API.
// The probe is only built on Windows; other platforms see an empty package.
package windows

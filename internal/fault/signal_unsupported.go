//go:build !((linux && amd64) || (linux && arm64))

package fault

import "fmt"

// doInstall reports that this platform has no SIGSEGV/SIGBUS handler
// wired up. spec.md §4.7's fault path is defined for x86_64 and aarch64
// Linux; every other target can still use the registry, codecs, and
// scheduler, it just never gets a chance to intercept an access to a
// protected region, so Install fails loudly instead of silently doing
// nothing.
func doInstall() error {
	return fmt.Errorf("fault: unsupported platform")
}

package xfer

import (
	"bytes"
	"fmt"
	"os/exec"

	"github.com/soypat/mdionl"
)

const defaultModprobe = "/sbin/modprobe"

// Loader makes the mdio family available, usually by loading a kernel module.
type Loader interface {
	Load() error
}

// LoaderFunc adapts a function to the [Loader] interface.
type LoaderFunc func() error

func (f LoaderFunc) Load() error { return f() }

// Modprobe loads a kernel module by running modprobe as a child process
// and waiting for it to exit. The zero value loads [mdionl.ModuleName] with /sbin/modprobe.
type Modprobe struct {
	Path   string
	Module string
}

// Load runs modprobe. A non-zero exit status is returned as an error.
func (m Modprobe) Load() error {
	path, module := m.Path, m.Module
	if path == "" {
		path = defaultModprobe
	}
	if module == "" {
		module = mdionl.ModuleName
	}
	out, err := exec.Command(path, module).CombinedOutput()
	if err != nil {
		out = bytes.TrimSpace(out)
		if len(out) > 0 {
			return fmt.Errorf("%s %s: %w: %s", path, module, err, out)
		}
		return fmt.Errorf("%s %s: %w", path, module, err)
	}
	return nil
}

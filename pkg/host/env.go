package host

import (
	"os"
	"path/filepath"
	"strconv"
)

// envProbe abstracts the process environment for serverEnv.
type envProbe struct {
	lookup func(string) (string, bool)
	home   string
	uid    int
	exists func(string) bool
}

func systemProbe() envProbe {
	home, _ := os.UserHomeDir()
	return envProbe{
		lookup: os.LookupEnv,
		home:   home,
		uid:    os.Getuid(),
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// serverEnv returns the overrides the server needs to reach the user's
// graphical session when launched outside of it.
func serverEnv(p envProbe) map[string]string {
	env := map[string]string{}
	if _, ok := p.lookup("DISPLAY"); !ok {
		env["DISPLAY"] = ":0"
	}
	if _, ok := p.lookup("XAUTHORITY"); !ok && p.home != "" {
		if xauth := filepath.Join(p.home, ".Xauthority"); p.exists(xauth) {
			env["XAUTHORITY"] = xauth
		}
	}
	if _, ok := p.lookup("XDG_RUNTIME_DIR"); !ok {
		if dir := "/run/user/" + strconv.Itoa(p.uid); p.exists(dir) {
			env["XDG_RUNTIME_DIR"] = dir
		}
	}
	if wayland, ok := p.lookup("WAYLAND_DISPLAY"); ok {
		env["WAYLAND_DISPLAY"] = wayland
	}
	return env
}

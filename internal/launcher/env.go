package launcher

// defaultPath is the PATH every container gets unless overridden.
const defaultPath = "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// buildEnv assembles the final environment list: PATH default, HOME=cwd,
// USER=name, container=lxc, and locked identity vars naming the container,
// then the caller-supplied Env on top, minus any entry that sets a locked
// identity variable.
func buildEnv(name, hostname, cwd string, extra []string) []string {
	env := []string{
		defaultPath,
		"HOME=" + cwd,
		"USER=" + name,
		"container=lxc",
		"SUPERVISR_NAME=" + name,
		"SUPERVISR_HOST=" + hostname,
	}
	for _, e := range extra {
		if identityOverride(envKey(e)) {
			continue
		}
		env = append(env, e)
	}
	return env
}

// identityOverride reports whether key names a locked identity variable;
// buildEnv drops caller-supplied entries for these keys.
func identityOverride(key string) bool {
	switch key {
	case "SUPERVISR_NAME", "SUPERVISR_HOST":
		return true
	default:
		return false
	}
}

func envKey(entry string) string {
	for i, r := range entry {
		if r == '=' {
			return entry[:i]
		}
	}
	return entry
}

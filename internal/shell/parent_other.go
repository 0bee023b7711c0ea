//go:build !linux && !darwin && !windows

package shell

func parentProcessName() string {
	return ""
}

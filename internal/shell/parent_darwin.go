package shell

import (
	"golang.org/x/sys/unix"
)

func parentProcessName() string {
	kp, err := unix.SysctlKinfoProc("kern.proc.pid", unix.Getppid())
	if err != nil {
		return ""
	}
	return unix.ByteSliceToString(kp.Proc.P_comm[:])
}

package shell

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func parentProcessName() string {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(snap)

	ppid := uint32(os.Getppid())
	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		if entry.ProcessID == ppid {
			return windows.UTF16ToString(entry.ExeFile[:])
		}
	}
	return ""
}

package shell

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

func parentProcessName() string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", unix.Getppid()))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

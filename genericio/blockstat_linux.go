package genericio

import (
	"os"
	"syscall"
)

// blockSizeFromStat reports the filesystem's preferred I/O block size for
// info, or 0 if it can't be determined.
func blockSizeFromStat(info os.FileInfo) int {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return int(st.Blksize)
}

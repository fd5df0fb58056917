//go:build !linux

package genericio

import "os"

// blockSizeFromStat has no portable implementation outside Linux; callers
// fall back to DefaultBlockSize.
func blockSizeFromStat(info os.FileInfo) int {
	return 0
}

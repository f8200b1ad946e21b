package storage

import (
	"os"
	"sort"

	"github.com/agentcore/core/pkg/types"
)

func sortSessionsByUpdatedDesc(sessions []*types.Session) {
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Updated > sessions[j].Updated })
}

func sortMessagesByTimestampAsc(messages []*types.Message) {
	sort.Slice(messages, func(i, j int) bool { return messages[i].Timestamp < messages[j].Timestamp })
}

// deleteDir removes a directory tree, tolerating it not existing.
func deleteDir(path string) error {
	err := os.RemoveAll(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

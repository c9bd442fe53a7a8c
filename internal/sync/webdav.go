package sync

import (
	"strconv"
	"strings"
)

// The task attachment-list field is a comma-delimited list of file
// object ids. Ids carry an "n" prefix while the binding is pending
// confirmation; readers strip it, writers add it for new entries.

// ParseFileList returns the numeric ids in a task's attachment-list
// field, pending prefix stripped. Malformed entries are dropped.
func ParseFileList(list string) []uint {
	var ids []uint
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "n")
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}

// AppendPending appends new file ids to a task's attachment-list field
// with the pending prefix, preserving existing entries verbatim.
func AppendPending(list string, ids []uint) string {
	parts := make([]string, 0, len(ids)+1)
	if strings.TrimSpace(list) != "" {
		parts = append(parts, list)
	}
	for _, id := range ids {
		parts = append(parts, "n"+strconv.FormatUint(uint64(id), 10))
	}
	return strings.Join(parts, ",")
}

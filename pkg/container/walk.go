package container

import (
	"fmt"
	"strings"
)

// nameTableSeparator joins names in format-1/3/4/7/2 name tables, per the
// pack state machine's emission rule.
const nameTableSeparator = ",\r\n"

// parseNameTable splits a name-table payload into its listed names. Each
// name is followed by ",\r\n"; trailing NUL padding and the final empty
// split are discarded.
func parseNameTable(raw []byte) []string {
	s := string(raw)
	if nul := strings.IndexByte(s, 0x00); nul >= 0 {
		s = s[:nul]
	}
	s = strings.TrimSuffix(s, nameTableSeparator)
	if s == "" {
		return nil
	}
	return strings.Split(s, nameTableSeparator)
}

// buildNameTable joins names with the pack state machine's separator,
// including its trailing copy.
func buildNameTable(names []string) []byte {
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteString(nameTableSeparator)
	}
	return []byte(b.String())
}

// hexName formats an opaque leaf's filename from its absolute archive
// offset, per the format-0/format-8 on-disk layout rule.
func hexName(offset int64, ext string) string {
	return fmt.Sprintf("%x%s", offset, ext)
}

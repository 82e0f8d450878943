// Package query implements the save-wrapping query rewriter and the
// executor that drives prepare/execute/complete against a session's
// backend connections.
package query

import (
	"fmt"
	"strings"

	"github.com/medo6/shim/internal/session"
)

// aioFormats are the named save formats USE_AIO accepts for aio_save
// rewriting. Parenthesized type lists also qualify (see useAIOFormat);
// anything else falls back to the classic save() wrapper even when
// USE_AIO is enabled.
var aioFormats = map[string]bool{
	"csv+":  true,
	"lcsv+": true,
	"arrow": true,
}

// ClassifySaveMode maps a save parameter string to the sticky mode it
// produces: binary if it starts with '(' or equals "arrow", text
// otherwise.
func ClassifySaveMode(save string) session.SaveMode {
	if strings.HasPrefix(save, "(") || save == "arrow" {
		return session.SaveBinary
	}
	return session.SaveText
}

// isParenFormat reports whether save is a parenthesized type list,
// e.g. "(string,int64)".
func isParenFormat(save string) bool {
	return strings.HasPrefix(save, "(") && strings.HasSuffix(save, ")")
}

// useAIOFormat reports whether save qualifies for aio_save rewriting
// under the USE_AIO policy: a paren format, or one of the named
// formats in aioFormats.
func useAIOFormat(save string) bool {
	return isParenFormat(save) || aioFormats[save]
}

// Rewrite builds the save-wrapped query text. out is the resolved
// save target (pipe path if streaming, else the output file path, via
// Slot.OutputTarget()); instanceID is the configured save-target
// instance id.
func Rewrite(rawQuery, save, out string, instanceID int, useAIO bool) string {
	if save == "" {
		return rawQuery
	}
	if useAIO && useAIOFormat(save) {
		return fmt.Sprintf("aio_save(%s,'path=%s','instance=%d','format=%s')", rawQuery, out, instanceID, save)
	}
	return fmt.Sprintf("save(%s,'%s',%d,'%s')", rawQuery, out, instanceID, save)
}

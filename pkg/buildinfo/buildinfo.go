// Package buildinfo reports the version stamped into a binary at link time.
package buildinfo

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Info holds values set with -ldflags "-X main.buildVersion=...".
type Info struct {
	Version string
	Date    string
	Commit  string
}

// na returns "N/A" if the input string is empty, otherwise it returns the input string.
func na(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// Print writes the build version, date, and commit information to w.
func (i Info) Print(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", na(i.Version))
	fmt.Fprintf(w, "Build date: %s\n", na(i.Date))
	fmt.Fprintf(w, "Build commit: %s\n", na(i.Commit))
}

// Fields returns the same information as structured log fields.
func (i Info) Fields() []zap.Field {
	return []zap.Field{
		zap.String("version", na(i.Version)),
		zap.String("build_date", na(i.Date)),
		zap.String("commit", na(i.Commit)),
	}
}

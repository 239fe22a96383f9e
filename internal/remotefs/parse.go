package remotefs

import (
	"strconv"
	"strings"
	"time"
)

// Entry is one parsed remote directory entry. Entries are only ever produced
// by parsing tool output, never constructed independently.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime int64 // seconds since epoch, 0 when unparseable
}

// parseListing turns `ls -la` output into entries. The listing command asks
// for GNU epoch timestamps first and falls back to the plain long format, so
// both field layouts show up here. Malformed lines are skipped rather than
// aborting the whole listing; "." and ".." are excluded.
func parseListing(out string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		e, ok := parseListingLine(line)
		if !ok {
			continue
		}
		if e.Name == "." || e.Name == ".." {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func parseListingLine(line string) (Entry, bool) {
	line = strings.TrimRight(line, "\r")
	if line == "" || strings.HasPrefix(line, "total") {
		return Entry{}, false
	}
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return Entry{}, false
	}
	mode := fields[0]
	switch mode[0] {
	case '-', 'd', 'l':
	default:
		return Entry{}, false
	}

	size, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return Entry{}, false
	}

	e := Entry{IsDir: mode[0] == 'd', Size: size}

	// GNU --time-style=+%s layout: mode links owner group size epoch name...
	if epoch, err := strconv.ParseInt(fields[5], 10, 64); err == nil {
		e.ModTime = epoch
		e.Name = restOfLine(line, fields, 6)
	} else {
		// plain layout: mode links owner group size Mon DD (HH:MM|YYYY) name...
		if len(fields) < 9 {
			return Entry{}, false
		}
		e.ModTime = parseLsTime(fields[5], fields[6], fields[7])
		e.Name = restOfLine(line, fields, 8)
	}

	if e.Name == "" {
		return Entry{}, false
	}
	// symlink listings carry "name -> target"
	if i := strings.Index(e.Name, " -> "); i >= 0 {
		e.Name = e.Name[:i]
	}
	return e, true
}

// restOfLine recovers the name field including interior runs of spaces by
// locating the nth field in the original line.
func restOfLine(line string, fields []string, n int) string {
	idx := 0
	for i := 0; i < n; i++ {
		pos := strings.Index(line[idx:], fields[i])
		if pos < 0 {
			return strings.Join(fields[n:], " ")
		}
		idx += pos + len(fields[i])
	}
	return strings.TrimLeft(line[idx:], " ")
}

// parseLsTime handles the two classic ls date forms: "Jan 2 15:04" for
// recent files and "Jan 2 2006" for older ones. Unparseable dates yield 0;
// callers treat the timestamp as advisory.
func parseLsTime(month, day, rest string) int64 {
	if strings.Contains(rest, ":") {
		ts, err := time.Parse("Jan 2 15:04 2006", month+" "+day+" "+rest+" "+strconv.Itoa(time.Now().Year()))
		if err != nil {
			return 0
		}
		return ts.Unix()
	}
	ts, err := time.Parse("Jan 2 2006", month+" "+day+" "+rest)
	if err != nil {
		return 0
	}
	return ts.Unix()
}

// parseStat classifies the pipe-delimited output of the stat probe
// (`%F|%s|%Y` GNU form or `%HT|%z|%m` BSD form). Unparseable output yields a
// zeroed entry: callers use stat primarily as a directory/file discriminator.
func parseStat(name, out string) Entry {
	e := Entry{Name: name}
	parts := strings.SplitN(strings.TrimSpace(out), "|", 3)
	if len(parts) != 3 {
		return e
	}
	e.IsDir = strings.EqualFold(parts[0], "directory")
	if size, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
		e.Size = size
	}
	if mod, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
		e.ModTime = mod
	}
	return e
}

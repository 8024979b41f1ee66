package snapshot

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ArchiveName returns the name an existing snapshot is moved to before it is
// overwritten: the Unix timestamp is inserted before the final extension,
// so "data/place.png" becomes "data/place.1700000000.png".
func ArchiveName(path string, at time.Time) string {
	return insertStamp(path, strconv.FormatInt(at.Unix(), 10))
}

// freeArchiveName is ArchiveName unless that file already exists, as happens
// when two saves land in the same second. It then appends "-1", "-2", and so
// on to the timestamp until the name is unused.
func freeArchiveName(path string, at time.Time) (string, error) {
	stamp := strconv.FormatInt(at.Unix(), 10)
	name := insertStamp(path, stamp)
	for n := 1; ; n++ {
		_, err := os.Lstat(name)
		if errors.Is(err, fs.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
		name = insertStamp(path, stamp+"-"+strconv.Itoa(n))
	}
}

func insertStamp(path, stamp string) string {
	dir, base := filepath.Split(path)
	parts := strings.Split(base, ".")
	if len(parts) < 2 {
		return dir + base + "." + stamp
	}
	ext := parts[len(parts)-1]
	named := append(parts[:len(parts)-1:len(parts)-1], stamp, ext)
	return dir + strings.Join(named, ".")
}

// Archive is one archived snapshot. Seq orders archives taken in the same
// second.
type Archive struct {
	Path  string
	Taken time.Time
	Seq   int
}

// Archives lists the archived copies of the snapshot at path, oldest first.
func Archives(path string) ([]Archive, error) {
	prefix, suffix, _ := strings.Cut(insertStamp(path, "*"), "*")
	matches, err := filepath.Glob(prefix + "*" + suffix)
	if err != nil {
		return nil, err
	}

	var out []Archive
	for _, m := range matches {
		if len(m) < len(prefix)+len(suffix) {
			continue
		}
		stamp := m[len(prefix) : len(m)-len(suffix)]
		secPart, seqPart, hasSeq := strings.Cut(stamp, "-")
		sec, err := strconv.ParseInt(secPart, 10, 64)
		if err != nil {
			continue
		}
		seq := 0
		if hasSeq {
			if seq, err = strconv.Atoi(seqPart); err != nil || seq < 1 {
				continue
			}
		}
		out = append(out, Archive{Path: m, Taken: time.Unix(sec, 0), Seq: seq})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Taken.Equal(out[j].Taken) {
			return out[i].Taken.Before(out[j].Taken)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

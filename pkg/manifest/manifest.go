// Package manifest reads just enough of an HLS playlist to drive seeking.
//
// It does not validate segment integrity or parse the full M3U8 grammar;
// the only questions the capture pipeline asks are "is this a playlist",
// "how long is it" and "does it declare an end".
package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/user/hlsnap/pkg/ports"
)

const (
	headerTag = "#EXTM3U"
	infTag    = "#EXTINF:"
	endTag    = "#EXT-X-ENDLIST"
)

// Info describes a parsed playlist.
type Info struct {
	// Duration is the sum of all segment durations.
	Duration time.Duration

	// VOD is true when the playlist declares #EXT-X-ENDLIST. Playlists
	// without it are live-style: their duration keeps growing, so the
	// reported Duration is not a reliable seek bound.
	VOD bool

	// SegmentCount is the number of media segment entries.
	SegmentCount int
}

// Parse extracts Info from raw playlist bytes. It fails when the data
// does not start with the #EXTM3U header.
func Parse(data []byte) (Info, error) {
	var info Info

	sc := bufio.NewScanner(bytes.NewReader(data))
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first {
			if !strings.HasPrefix(line, headerTag) {
				return Info{}, fmt.Errorf("not an HLS playlist: missing %s header", headerTag)
			}
			first = false
			continue
		}

		switch {
		case strings.HasPrefix(line, infTag):
			// #EXTINF:<duration>,[<title>]
			v := strings.TrimPrefix(line, infTag)
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = v[:i]
			}
			secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err == nil && secs > 0 {
				info.Duration += time.Duration(secs * float64(time.Second))
			}
			info.SegmentCount++
		case line == endTag:
			info.VOD = true
		}
	}
	if err := sc.Err(); err != nil {
		return Info{}, fmt.Errorf("read playlist: %w", err)
	}
	if first {
		return Info{}, fmt.Errorf("not an HLS playlist: empty file")
	}
	return info, nil
}

// ProbeFile reads and parses the playlist at path.
func ProbeFile(fsys ports.FileSystem, path string) (Info, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

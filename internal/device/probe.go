package device

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
	"time"
)

const probeTimeout = 5 * time.Second

// CodecFallback is the software encoder available in every ffmpeg build.
const CodecFallback = "libx265"

// codecLadder is the preference order for the capability probe; the first
// encoder present in the build wins.
var codecLadder = []string{"hevc_nvenc", "hevc_vaapi", CodecFallback}

// sourceLine matches one device row of `ffmpeg -sources <format>`:
//
//	* /dev/video0 [Integrated Camera]
//	  /dev/video2 [USB Capture HDMI]
var sourceLine = regexp.MustCompile(`^\s*(?:\*\s*)?(/\S+)\s+\[(.*)\]\s*$`)

func parseSources(out []byte) map[string]string {
	names := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if m := sourceLine.FindStringSubmatch(sc.Text()); m != nil {
			names[m[1]] = strings.TrimSpace(m[2])
		}
	}
	return names
}

// encoderLine matches one video encoder row of `ffmpeg -encoders` after the
// legend separator, capturing the encoder name.
var encoderLine = regexp.MustCompile(`^\s*V\S*\s+(\S+)`)

func parseEncoders(out []byte) map[string]bool {
	found := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	inTable := false
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "------") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		if m := encoderLine.FindStringSubmatch(line); m != nil {
			found[m[1]] = true
		}
	}
	return found
}

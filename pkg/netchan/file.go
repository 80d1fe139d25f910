package netchan

import (
	"path"
	"strings"
	"unicode"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

const maxPathDepth = 32

var deniedPathParts = []string{
	"lua/", "gamemodes/", "scripts/", "addons/", "cfg/", "~/", "gamemodes.txt",
}

var deniedExtensions = map[string]bool{
	".cfg": true, ".lst": true, ".exe": true, ".vbs": true, ".com": true,
	".bat": true, ".cmd": true, ".dll": true, ".ini": true, ".log": true,
	".lua": true, ".nut": true, ".vdf": true, ".smx": true, ".gcf": true,
	".lmp": true, ".sys": true,
}

// ValidTransferName reports whether name may be sent or written through a
// file transfer. Absolute paths, parent references, script and config
// locations, executable extensions and odd characters are refused. Files
// under maps/ are limited to map, node graph and nav files.
func ValidTransferName(name string) bool {
	if name == "" || len(name) >= protocol.MaxOSPath {
		return false
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") || strings.Contains(name, ":") {
		return false
	}

	p := strings.ReplaceAll(name, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if strings.HasSuffix(p, "/") {
		return false
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return false
		}
	}
	if strings.Count(p, "/") >= maxPathDepth {
		return false
	}
	for _, r := range p {
		if r < 0x20 || r > 0x7E || unicode.IsSpace(r) && r != ' ' {
			return false
		}
	}

	lower := strings.ToLower(p)
	for _, part := range deniedPathParts {
		if strings.Contains(lower, part) {
			return false
		}
	}
	if strings.Contains(lower, "maps/") &&
		!strings.Contains(lower, ".bsp") && !strings.Contains(lower, ".ain") && !strings.Contains(lower, ".nav") {
		return false
	}

	ext := path.Ext(lower)
	if len(ext) < 3 || len(ext) > 4 || strings.ContainsRune(ext, ' ') {
		return false
	}
	return !deniedExtensions[ext]
}

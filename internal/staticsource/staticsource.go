// Package staticsource resolves properties from read-only fallback
// sources when the live service is unreachable: the build properties
// file first, then the kernel command line. Sources are re-read on
// every lookup and every failure is a plain "not found".
package staticsource

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/danmuck/propctl/internal/config"
	"github.com/danmuck/propctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	// BootParamPrefix marks kernel parameters that map into the
	// property namespace.
	BootParamPrefix = "androidboot."
	// BootPropPrefix replaces BootParamPrefix to form the property key.
	BootPropPrefix = "ro."

	// cmdlineReadLimit bounds the pseudo-file read; the kernel command
	// line is a single short line.
	cmdlineReadLimit = 1023
)

// Resolve walks the static sources in priority order. First match
// wins; there is no merging.
func Resolve(cfg config.Config, key string) (string, bool) {
	if v, ok := LookupBuildProps(cfg.BuildPropsPath, key); ok {
		return v, true
	}
	return LookupKernelCmdline(cfg.CmdlinePath, key)
}

// LookupBuildProps scans a line-oriented key=value file for key.
// Trailing CR/LF is stripped, the split is on the first '=', and the
// first exact key match wins. Malformed lines are skipped; an
// unreadable file is "not found".
func LookupBuildProps(path, key string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		log.Debug().Str("path", path).Err(err).Msg("build properties unavailable")
		return "", false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		name, value, ok := strings.Cut(line, "=")
		if !ok || name == "" {
			continue
		}
		if name == key {
			return value, true
		}
	}
	return "", false
}

// LookupKernelCmdline resolves key from the kernel command line
// pseudo-file. Only space-separated name=value tokens whose name
// carries BootParamPrefix (with a non-empty remainder) are considered;
// the prefix is swapped for BootPropPrefix to form the candidate key.
func LookupKernelCmdline(path, key string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		log.Debug().Str("path", path).Err(err).Msg("kernel cmdline unavailable")
		return "", false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, cmdlineReadLimit))
	if err != nil {
		log.Debug().Str("path", path).Err(err).Msg("kernel cmdline read failed")
		return "", false
	}
	cmdline := strings.TrimSuffix(string(data), "\n")

	for _, tok := range strings.Split(cmdline, " ") {
		name, value, ok := strings.Cut(tok, "=")
		if !ok || name == "" {
			continue
		}
		suffix, ok := strings.CutPrefix(name, BootParamPrefix)
		if !ok || suffix == "" {
			continue
		}
		candidate := BootPropPrefix + suffix
		// The service composes this key in a NameMax buffer, so
		// over-long boot parameter names are clamped before comparing.
		if len(candidate) >= protocol.NameMax {
			candidate = candidate[:protocol.NameMax-1]
		}
		if candidate == key {
			return value, true
		}
	}
	return "", false
}

package logging

import (
	"fmt"
	"os"
	"strings"
)

const envVar = "LOGLEVEL"

var tagLevels []struct {
	tag   string
	level Level
}

func init() {
	configure(os.Getenv(envVar))
}

// Parse comma-separated "tag=level" directives. A directive without "tag="
// sets the process-wide level.
func configure(directives string) {
	for _, d := range strings.Split(directives, ",") {
		if d == "" {
			continue
		}
		v := strings.SplitN(d, "=", 2)
		levelString := v[len(v)-1]
		level, err := ParseLevel(levelString)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid %s directive '%s': %s\n", envVar, d, err)
			continue
		}
		if len(v) == 1 {
			SetLevel(level)
		} else {
			tagLevels = append(tagLevels, struct {
				tag   string
				level Level
			}{v[0], level})
		}
	}
}

// Look up a level pinned to the given tag by the environment.
func pinnedLevel(tag string) (Level, bool) {
	for _, e := range tagLevels {
		if e.tag == tag {
			return e.level, true
		}
	}
	return 0, false
}

package media

import (
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies a registered backend for device enumeration and default
// selection.
type Kind int

const (
	// Camera backends enumerate physical devices.
	Camera Kind = iota

	// Virtual backends enumerate software devices, listed after cameras.
	Virtual

	// File backends open paths and enumerate nothing.
	File
)

// A function used to create an unopened source of a specific type.
type NewFunc func() Source

type backend struct {
	tag  string
	kind Kind

	// Lower values are preferred among backends of the same kind.
	priority int

	create NewFunc
}

var registry = map[string]backend{}

// Register a source type, identified by its "source tag". Device names of the
// form "tag:path" are opened by a source from create.
func RegisterSourceType(tag string, kind Kind, priority int, create NewFunc) {
	registry[tag] = backend{tag: tag, kind: kind, priority: priority, create: create}
}

// Tags lists the registered source tags.
func Tags() []string {
	var tags []string
	for t := range registry {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func backends(kind Kind) []backend {
	var out []backend
	for _, b := range registry {
		if b.kind == kind {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].tag < out[j].tag
	})
	return out
}

// FindDeviceNames lists every openable device: cameras first, then virtual
// devices.
func FindDeviceNames() []string {
	var names []string
	for _, kind := range []Kind{Camera, Virtual} {
		for _, b := range backends(kind) {
			names = append(names, b.create().FindDeviceNames()...)
		}
	}
	return names
}

// IsVirtual reports whether name belongs to a virtual backend.
func IsVirtual(name string) bool {
	tag, _ := splitName(name)
	b, ok := registry[tag]
	return ok && b.kind == Virtual
}

// Qualify prefixes a backend path with its tag.
func Qualify(tag, path string) string {
	return tag + ":" + path
}

// Split the name into tag and path. A prefix that is not a registered tag
// (say, a Windows drive letter) is part of the path.
func splitName(name string) (tag, path string) {
	parts := strings.SplitN(name, ":", 2)
	if len(parts) == 2 {
		if _, found := registry[parts[0]]; found {
			return parts[0], parts[1]
		}
	}
	return "", name
}

// Resolve maps a device name to a registered tag and the path to open:
//   - "tag:path" names select the tag explicitly;
//   - the empty name selects the first enumerated device;
//   - an existing regular file selects the file backend;
//   - anything else goes to the preferred camera backend.
func Resolve(name string) (tag, path string, err error) {
	if tag, path = splitName(name); tag != "" {
		return tag, path, nil
	}

	if name == "" {
		names := FindDeviceNames()
		if len(names) == 0 {
			return "", "", ErrNotFound
		}
		tag, path = splitName(names[0])
		return tag, path, nil
	}

	if info, err := os.Stat(name); err == nil && info.Mode().IsRegular() {
		if files := backends(File); len(files) > 0 {
			return files[0].tag, name, nil
		}
	}

	if cameras := backends(Camera); len(cameras) > 0 {
		return cameras[0].tag, name, nil
	}
	return "", "", errors.Wrapf(ErrNotFound, "%q", name)
}

// IsFile reports whether name resolves to the file backend.
func IsFile(name string) bool {
	tag, _, err := Resolve(name)
	return err == nil && registry[tag].kind == File
}

// OpenSource resolves name and opens a source for it.
func OpenSource(name string, cfg Config, sink Sink) (Source, error) {
	log.Verbose("Registered source types: %v", Tags())

	tag, path, err := Resolve(name)
	if err != nil {
		return nil, err
	}
	b, found := registry[tag]
	if !found {
		return nil, errors.Errorf("Source type '%s' not registered", tag)
	}

	src := b.create()
	if err := src.Open(path, cfg, sink); err != nil {
		return nil, err
	}
	return src, nil
}

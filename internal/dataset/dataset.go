// Package dataset loads resource collections from YAML, JSON or TOML files.
//
// A data file maps resource names to an index field list, an optional
// watch delay and a list of documents:
//
//	resources:
//	  documents:
//	    index: [name, description]
//	    watch_delay: 50ms
//	    documents:
//	      - {id: "1", name: One, description: The first document}
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/resourcesearch/internal/coordinator"
	"github.com/Aman-CERP/resourcesearch/internal/engine"
	"github.com/Aman-CERP/resourcesearch/internal/errors"
	"github.com/Aman-CERP/resourcesearch/internal/searchapi"
	"github.com/Aman-CERP/resourcesearch/internal/store"
)

// WatchOff disables reindexing on change for a resource.
const WatchOff = "off"

// Resource is one named collection read from a data file.
type Resource struct {
	Name       string
	Path       string
	Index      []string
	WatchDelay string
	Documents  engine.List
}

type fileFormat struct {
	Resources map[string]resourceFormat `yaml:"resources" json:"resources" toml:"resources"`
}

type resourceFormat struct {
	Index      []string         `yaml:"index" json:"index" toml:"index"`
	WatchDelay string           `yaml:"watch_delay" json:"watch_delay" toml:"watch_delay"`
	Documents  []map[string]any `yaml:"documents" json:"documents" toml:"documents"`
}

// Dataset is the union of the resources of several files.
type Dataset struct {
	resources map[string]Resource
}

// ParseFile reads one data file. Files ending in .json are parsed as
// JSON, .toml as TOML and everything else as YAML.
func ParseFile(path string) ([]Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.DataError(errors.ErrCodeDataRead, path, err)
	}

	var f fileFormat
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, errors.DataError(errors.ErrCodeDataParse, path, err)
	}

	names := make([]string, 0, len(f.Resources))
	for name := range f.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	resources := make([]Resource, 0, len(names))
	for _, name := range names {
		raw := f.Resources[name]
		if len(raw.Index) == 0 {
			return nil, errors.DataError(errors.ErrCodeDataParse, path,
				fmt.Errorf("resource %q has no index fields", name))
		}
		if _, _, err := parseWatchDelay(raw.WatchDelay); err != nil {
			return nil, errors.DataError(errors.ErrCodeDataParse, path,
				fmt.Errorf("resource %q: %w", name, err))
		}

		docs := make(engine.List, 0, len(raw.Documents))
		for i, fields := range raw.Documents {
			rec, err := toRecord(fields)
			if err != nil {
				return nil, errors.DataError(errors.ErrCodeDataParse, path,
					fmt.Errorf("resource %q document %d: %w", name, i, err))
			}
			docs = append(docs, rec)
		}

		resources = append(resources, Resource{
			Name:       name,
			Path:       path,
			Index:      raw.Index,
			WatchDelay: raw.WatchDelay,
			Documents:  docs,
		})
	}
	return resources, nil
}

// toRecord converts a decoded document into a Record. Scalar fields
// become text; nested values are skipped.
func toRecord(fields map[string]any) (engine.Record, error) {
	rawID, ok := fields["id"]
	if !ok || rawID == nil {
		return engine.Record{}, fmt.Errorf("missing id")
	}
	id, ok := scalarText(rawID)
	if !ok || id == "" {
		return engine.Record{}, fmt.Errorf("id must be a non-empty scalar")
	}

	rec := engine.Record{ID: id, Fields: make(map[string]string, len(fields))}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		if text, ok := scalarText(v); ok {
			rec.Fields[k] = text
		}
	}
	return rec, nil
}

func scalarText(v any) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case time.Time:
		return v.Format(time.RFC3339), true
	case toml.LocalDate, toml.LocalTime, toml.LocalDateTime:
		return v.(fmt.Stringer).String(), true
	default:
		return "", false
	}
}

// Load parses every path concurrently. A resource name may appear in only
// one file.
func Load(ctx context.Context, paths ...string) (*Dataset, error) {
	parsed := make([][]Resource, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resources, err := ParseFile(path)
			if err != nil {
				return err
			}
			parsed[i] = resources
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &Dataset{resources: make(map[string]Resource)}
	for _, resources := range parsed {
		for _, r := range resources {
			if prev, ok := d.resources[r.Name]; ok {
				return nil, errors.DataError(errors.ErrCodeDataParse, r.Path,
					fmt.Errorf("resource %q is already defined in %s", r.Name, prev.Path))
			}
			d.resources[r.Name] = r
		}
	}
	return d, nil
}

// Names returns the resource names in sorted order.
func (d *Dataset) Names() []string {
	names := make([]string, 0, len(d.resources))
	for name := range d.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resource returns the named resource.
func (d *Dataset) Resource(name string) (Resource, bool) {
	r, ok := d.resources[name]
	return r, ok
}

// Apply writes every collection into the store under its resource name.
func (d *Dataset) Apply(s *store.Store) {
	for _, name := range d.Names() {
		s.Set(name, d.resources[name].Documents)
	}
}

// Configs returns a coordinator config per resource. Resources without a
// watch delay use defaultDelay.
func (d *Dataset) Configs(defaultDelay time.Duration) map[string]coordinator.ResourceConfig {
	configs := make(map[string]coordinator.ResourceConfig, len(d.resources))
	for name, r := range d.resources {
		configs[name] = r.Config(defaultDelay)
	}
	return configs
}

// Config returns the coordinator config for r. The collection is read from
// the store key r.Name.
func (r Resource) Config(defaultDelay time.Duration) coordinator.ResourceConfig {
	delay, disabled, _ := parseWatchDelay(r.WatchDelay)
	if r.WatchDelay == "" {
		delay = defaultDelay
	}
	key := r.Name
	return coordinator.ResourceConfig{
		Getter: func(st store.State) engine.Collection {
			docs, _ := st.Get(key).(engine.List)
			return docs
		},
		Index: searchapi.FieldIndex(append([]string(nil), r.Index...)),
		Watch: coordinator.WatchConfig{Disabled: disabled, Delay: delay},
	}
}

func parseWatchDelay(s string) (time.Duration, bool, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "":
		return 0, false, nil
	case WatchOff:
		return 0, true, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, false, fmt.Errorf("invalid watch_delay %q: %w", s, err)
	}
	if d < 0 {
		return 0, false, fmt.Errorf("watch_delay %q is negative", s)
	}
	return d, false, nil
}

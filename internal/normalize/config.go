package normalize

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pmgate/internal/eventlog"
)

//go:embed ingest_schema.cue
var ingestSchema string

// Merge strategies.
const (
	MergeConcat = "concat"
	MergeJoin   = "join"
)

// DefaultEventIDDelimiter joins event id parts when none is configured.
const DefaultEventIDDelimiter = "::"

// SourceConfig describes one ingest source.
type SourceConfig struct {
	Path      string `yaml:"path"`
	Name      string `yaml:"name,omitempty"`
	Format    string `yaml:"format,omitempty"`
	Delimiter string `yaml:"delimiter,omitempty"`

	Case      string `yaml:"case,omitempty"`
	Activity  string `yaml:"activity,omitempty"`
	Timestamp string `yaml:"timestamp,omitempty"`
	Resource  string `yaml:"resource,omitempty"`

	TimestampFormat   string `yaml:"timestamp_format,omitempty"`
	TimestampDayFirst bool   `yaml:"timestamp_dayfirst,omitempty"`
	TimestampUTC      bool   `yaml:"timestamp_utc,omitempty"`
	TimestampTimezone string `yaml:"timestamp_timezone,omitempty"`

	ColumnMap        map[string]string `yaml:"column_map,omitempty"`
	Prefix           string            `yaml:"prefix,omitempty"`
	EventIDColumns   []string          `yaml:"event_id_columns,omitempty"`
	EventIDDelimiter string            `yaml:"event_id_delimiter,omitempty"`
}

// Mapping returns the column mapping of the source.
func (s SourceConfig) Mapping() ColumnMapping {
	return ColumnMapping{Case: s.Case, Activity: s.Activity, Timestamp: s.Timestamp, Resource: s.Resource}
}

// TimestampOptions returns the timestamp parsing options of the source.
func (s SourceConfig) TimestampOptions() TimestampOptions {
	return TimestampOptions{
		Format:   s.TimestampFormat,
		DayFirst: s.TimestampDayFirst,
		UTC:      s.TimestampUTC,
		Timezone: s.TimestampTimezone,
	}
}

// MergeConfig selects how sources are combined.
type MergeConfig struct {
	Strategy string   `yaml:"strategy,omitempty"`
	JoinKeys []string `yaml:"join_keys,omitempty"`
	How      string   `yaml:"how,omitempty"`
}

// CaseIDStrategy rebuilds the case id from several columns.
type CaseIDStrategy struct {
	Type      string   `yaml:"type"`
	Columns   []string `yaml:"columns"`
	Delimiter string   `yaml:"delimiter,omitempty"`
}

// IngestConfig is the multi-source ingest configuration.
type IngestConfig struct {
	Sources        []SourceConfig  `yaml:"sources"`
	Merge          MergeConfig     `yaml:"merge,omitempty"`
	CaseIDStrategy *CaseIDStrategy `yaml:"case_id_strategy,omitempty"`
}

// LoadIngestConfig reads a YAML or JSON ingest config from path.
func LoadIngestConfig(path string) (*IngestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ingest config: %w", err)
	}
	return ParseIngestConfig(data)
}

// ParseIngestConfig validates data against the ingest schema and decodes it.
// Unknown fields are rejected.
func ParseIngestConfig(data []byte) (*IngestConfig, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, eventlog.NewConfigurationError("parse ingest config: %v", err)
	}
	if err := validateIngestConfig(generic); err != nil {
		return nil, err
	}

	var cfg IngestConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, eventlog.NewConfigurationError("decode ingest config: %v", err)
	}
	if cfg.Merge.Strategy == "" {
		cfg.Merge.Strategy = MergeConcat
	}
	if cfg.Merge.Strategy == MergeJoin {
		if len(cfg.Merge.JoinKeys) == 0 {
			cfg.Merge.JoinKeys = []string{eventlog.ColCase}
		}
		if cfg.Merge.How == "" {
			cfg.Merge.How = "outer"
		}
	}
	return &cfg, nil
}

func validateIngestConfig(generic any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(ingestSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile ingest schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#IngestConfig"))
	value := def.Unify(ctx.Encode(generic))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return eventlog.NewConfigurationError("invalid ingest config: %s", firstCUEError(err))
	}
	return nil
}

func firstCUEError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	return errs[0].Error()
}

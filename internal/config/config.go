// Package config loads a bulk-edit job definition: a YAML file merged with
// KVEDIT__-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"kvedit/internal/changefeed"
	"kvedit/internal/store"
)

const SupportedSchema = "v1"

// RangeCfg selects the keys a job touches. Prefix wins over start/end; an
// empty range covers the whole column family, but the section itself must be
// present so a full scan is an explicit choice.
type RangeCfg struct {
	Prefix string `koanf:"prefix"`
	Start  string `koanf:"start"`
	End    string `koanf:"end"`
}

func (r RangeCfg) KeyRange() store.KeyRange {
	return store.KeyRange{
		Prefix: []byte(r.Prefix),
		Start:  []byte(r.Start),
		End:    []byte(r.End),
	}
}

type BatchCfg struct {
	MaxCount int `koanf:"max_count"`
	MaxBytes int `koanf:"max_bytes"`
}

// CallbackCfg names one callback capability. Type "cel" uses Expr, type
// "script" uses Command/Args, empty type means absent.
type CallbackCfg struct {
	Type    string   `koanf:"type"`
	Expr    string   `koanf:"expr"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
}

func (c CallbackCfg) validate(name string, required bool) error {
	switch c.Type {
	case "":
		if required {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	case "cel":
		if c.Expr == "" {
			return fmt.Errorf("%s: cel callback needs expr", name)
		}
	case "script":
		if c.Command == "" {
			return fmt.Errorf("%s: script callback needs command", name)
		}
	default:
		return fmt.Errorf("%s: unknown callback type %q", name, c.Type)
	}
	return nil
}

type BackupCfg struct {
	Path      string `koanf:"path"`
	Separator string `koanf:"separator"`
}

type Job struct {
	StorePath         string            `koanf:"store_path"`
	ColumnFamily      string            `koanf:"column_family"`
	Range             RangeCfg          `koanf:"range"`
	DryRun            bool              `koanf:"dry_run"`
	WriteUnchanged    bool              `koanf:"write_unchanged"`
	Limit             int               `koanf:"limit"`
	Batch             BatchCfg          `koanf:"batch"`
	PerRecordTimeout  time.Duration     `koanf:"per_record_timeout"`
	MaxErrorsRecorded int               `koanf:"max_errors_recorded"`
	Predicate         CallbackCfg       `koanf:"predicate"`
	Transform         CallbackCfg       `koanf:"transform"`
	Backup            BackupCfg         `koanf:"backup"`
	Changefeed        changefeed.Config `koanf:"changefeed"`
	MetricsPort       int               `koanf:"metrics_port"`
	ProgressEvery     int               `koanf:"progress_every"`
}

// Load reads the job YAML and merges env-vars (prefix `KVEDIT__`,
// delimiter `__`) over it.
func Load(path string) (Job, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Job{}, err
	}
	sv := k.String("schema_version")
	if sv != "" && sv != SupportedSchema {
		return Job{}, fmt.Errorf("job schema_version %q not supported (want %q)", sv, SupportedSchema)
	}

	_ = k.Load(env.Provider("KVEDIT__", "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "KVEDIT__"))
	}), nil)

	var job Job
	if err := k.Unmarshal("", &job); err != nil {
		return job, err
	}
	if !k.Exists("range") {
		return job, fmt.Errorf("range is required (use an empty prefix to scan the whole column family)")
	}
	return job, job.validate()
}

func (j Job) validate() error {
	if j.StorePath == "" {
		return fmt.Errorf("store_path is required")
	}
	if j.ColumnFamily == "" {
		return fmt.Errorf("column_family is required")
	}
	if j.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}
	if j.Batch.MaxCount < 0 || j.Batch.MaxBytes < 0 {
		return fmt.Errorf("batch thresholds must be non-negative")
	}
	if err := j.Predicate.validate("predicate", false); err != nil {
		return err
	}
	if err := j.Transform.validate("transform", !j.DryRun); err != nil {
		return err
	}
	if j.Backup.Path != "" && j.DryRun {
		return fmt.Errorf("backup.path is pointless with dry_run")
	}
	return nil
}

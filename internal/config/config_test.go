package config

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"

	"docmigrate/internal/audit"
)

// genNonEmptyString generates non-empty strings for configuration fields.
func genNonEmptyString() gopter.Gen {
	return gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0
	})
}

// genRebuild generates a Rebuild section with only scalar fields set, so omitted
// slices compare equal after a round-trip.
func genRebuild() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf(ModeTree, ModeMapping),
		genNonEmptyString(),
		genNonEmptyString(),
		genNonEmptyString(),
		gen.OneConstOf("move", "copy"),
		gen.OneConstOf("overwrite", "fail", "rename"),
		gen.Bool(),
	).Map(func(vals []interface{}) *Rebuild {
		return &Rebuild{
			Mode:       vals[0].(string),
			SourceRoot: vals[1].(string),
			FlatFolder: vals[2].(string),
			DestRoot:   vals[3].(string),
			OutputExt:  ".pdf",
			Action:     vals[4].(string),
			Collision:  vals[5].(string),
			DryRun:     vals[6].(bool),
		}
	})
}

// genAuditConfig generates an AuditConfig that needs no defaults.
func genAuditConfig() gopter.Gen {
	return gopter.CombineGens(
		genNonEmptyString(),                   // LogDirectory
		gen.Int64Range(1024, 100*1024*1024),   // RotationSize (1KB to 100MB)
		gen.OneConstOf("", "daily", "weekly"), // RotationPeriod
		gen.Bool(),                            // Disabled
	).Map(func(vals []interface{}) *audit.AuditConfig {
		return &audit.AuditConfig{
			LogDirectory:   vals[0].(string),
			RotationSize:   vals[1].(int64),
			RotationPeriod: vals[2].(string),
			Disabled:       vals[3].(bool),
		}
	})
}

func genJob() gopter.Gen {
	return gopter.CombineGens(
		genRebuild(),
		gen.IntRange(1, 10000),
		genAuditConfig(),
	).Map(func(vals []interface{}) *Job {
		return &Job{
			Rebuild: vals[0].(*Rebuild),
			Watch:   &Watch{DebounceMs: vals[1].(int), StabilityMs: 500, StabilityChecks: 3},
			Audit:   vals[2].(*audit.AuditConfig),
		}
	})
}

// Feature: job-files, Property 1: Job Round-Trip
// For any job, saving it as JSON or YAML and loading it back yields the same job.
func TestJobRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("Job round-trip preserves data", prop.ForAll(
		func(job *Job, name string) bool {
			fsys := afero.NewMemMapFs()

			if err := Save(fsys, job, name); err != nil {
				t.Logf("Save failed: %v", err)
				return false
			}
			loaded, err := Load(fsys, name)
			if err != nil {
				t.Logf("Load failed: %v", err)
				return false
			}
			return reflect.DeepEqual(job, loaded)
		},
		genJob(),
		gen.OneConstOf("/job.json", "/job.yaml", "/job.yml"),
	))

	properties.TestingRun(t)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/nope.json")

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != FileNotFound {
		t.Fatalf("expected FILE_NOT_FOUND, got %v", err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
	}{
		{"json", "/job.json", `{"rebuild": {"flatFolde": "/flat"}}`},
		{"yaml", "/job.yaml", "rebuild:\n  flatFolde: /flat\n"},
		{"broken json", "/job.json", `{"rebuild": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			if err := afero.WriteFile(fsys, tt.path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(fsys, tt.path)

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Type != InvalidFormat {
				t.Errorf("expected INVALID_FORMAT, got %v", err)
			}
		})
	}
}

func TestLoadYAMLJob(t *testing.T) {
	fsys := afero.NewMemMapFs()
	content := `rebuild:
  mode: mapping
  mapping:
    sheetFile: /jobs/index.xlsx
    sheet: Drawings
    absoluteDirs: true
  flatFolder: /ocr/out
  destRoot: /rebuilt
  suffix: _ocr
  include: [docx, tif]
tokenize:
  sourceRoot: /jobs/src
`
	if err := afero.WriteFile(fsys, "/job.yml", []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	job, err := Load(fsys, "/job.yml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if job.Rebuild == nil || job.Rebuild.Mapping.Sheet != "Drawings" || !job.Rebuild.Mapping.AbsoluteDirs {
		t.Fatalf("mapping section not loaded: %+v", job.Rebuild)
	}
	if !reflect.DeepEqual(job.Rebuild.Include, []string{"docx", "tif"}) {
		t.Errorf("unexpected include list %v", job.Rebuild.Include)
	}
	if job.Compare != nil {
		t.Error("absent sections should stay nil")
	}

	job.Tokenize.ApplyDefaults()
	if job.Tokenize.Mode != "copy" || job.Tokenize.Padding != 6 || job.Tokenize.Separator != "__" {
		t.Errorf("tokenize defaults not applied: %+v", job.Tokenize)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/job.yaml", nil, 0644); err != nil {
		t.Fatal(err)
	}

	job, err := Load(fsys, "/job.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if job.Audit == nil || job.Audit.LogDirectory != audit.DefaultAuditConfig().LogDirectory {
		t.Errorf("expected audit defaults, got %+v", job.Audit)
	}
}

func TestAuditConfigPartialOverrideAppliesDefaults(t *testing.T) {
	job := &Job{Audit: &audit.AuditConfig{RotationPeriod: "daily"}}
	job.ApplyAuditDefaults()

	defaults := audit.DefaultAuditConfig()
	if job.Audit.LogDirectory != defaults.LogDirectory {
		t.Errorf("expected default log directory, got %q", job.Audit.LogDirectory)
	}
	if job.Audit.RotationSize != defaults.RotationSize {
		t.Errorf("expected default rotation size, got %d", job.Audit.RotationSize)
	}
	if job.Audit.RotationPeriod != "daily" {
		t.Errorf("custom rotation period lost: %q", job.Audit.RotationPeriod)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAuditDir:      "/var/log/docmigrate",
		EnvAuditDisabled: "true",
	}
	job := &Job{}
	job.ApplyEnv(func(k string) string { return env[k] })

	if job.Audit.LogDirectory != "/var/log/docmigrate" {
		t.Errorf("expected env log directory, got %q", job.Audit.LogDirectory)
	}
	if !job.Audit.Disabled {
		t.Error("expected audit disabled by env")
	}

	job = &Job{}
	job.ApplyEnv(func(k string) string {
		if k == EnvAuditDisabled {
			return "sometimes"
		}
		return ""
	})
	if job.Audit.Disabled {
		t.Error("unparseable flag must leave the audit trail enabled")
	}
}

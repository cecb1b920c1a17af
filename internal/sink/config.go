package sink

import "path/filepath"

const (
	EncodingUTF8        = "utf-8"
	EncodingUTF8BOM     = "utf-8-bom"
	EncodingWindows1252 = "windows-1252"
	EncodingISO88591    = "iso-8859-1"

	defaultSkipReportName = "skipped_files.txt"
)

// Config contains the configuration options for where and how
// the results of a run are written.
type Config struct {
	// Path of the CSV rows are appended to. Rerunning against the same
	// path accumulates rows.
	Path string `yaml:"path" env:"OUTPUT_PATH" env-default:"results.csv" validate:"required"`

	// Path the skip report is written to. Defaults to skipped_files.txt
	// beside the CSV.
	SkipReportPath string `yaml:"skip_report_path" env:"OUTPUT_SKIP_REPORT_PATH"`

	// OmitHeader suppresses the header row otherwise written to a new (empty) CSV.
	OmitHeader bool `yaml:"omit_header" env:"OUTPUT_OMIT_HEADER"`

	// Sync causes the CSV to be fsync'd after every row.
	Sync bool `yaml:"sync" env:"OUTPUT_SYNC" env-default:"false"`

	Encoding string `yaml:"encoding" env:"OUTPUT_ENCODING" env-default:"utf-8" validate:"oneof=utf-8 utf-8-bom windows-1252 iso-8859-1"`
}

// SkipReport returns the path of the skip report.
func (config *Config) SkipReport() string {
	if config.SkipReportPath != "" {
		return config.SkipReportPath
	}

	return filepath.Join(filepath.Dir(config.Path), defaultSkipReportName)
}

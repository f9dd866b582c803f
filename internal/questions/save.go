package questions

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Encode writes qs to w in the given format. The output parses back with
// Parse.
func Encode(w io.Writer, qs []Question, format Format) error {
	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"category", "question", "answer"}); err != nil {
			return err
		}
		for _, q := range qs {
			if err := cw.Write([]string{q.Category, q.Text, q.Answer}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()

	case FormatTOML:
		doc := struct {
			Questions []Question `toml:"question"`
		}{Questions: qs}
		return toml.NewEncoder(w).Encode(doc)

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(qs); err != nil {
			return err
		}
		return enc.Close()

	default:
		return fmt.Errorf("unsupported question format %q", format)
	}
}

// Save writes qs to path in the format implied by its extension. The file is
// replaced atomically, so a running Watch never reloads a partial bank.
func Save(path string, qs []Question) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := Encode(tmp, qs, format); err != nil {
		return fmt.Errorf("encode %s questions: %w", format, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tmp = nil

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

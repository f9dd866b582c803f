// Package questions loads the static trivia question bank.
package questions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	rand "math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrEmptyBank is returned when a bank has no usable questions.
var ErrEmptyBank = errors.New("question bank is empty")

// Question is an immutable question/answer pair.
type Question struct {
	Category string `toml:"category" yaml:"category"`
	Text     string `toml:"question" yaml:"question"`
	Answer   string `toml:"answer" yaml:"answer"`
}

// Format identifies a question file encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported question file extension %q", filepath.Ext(path))
	}
}

// Parse decodes questions from r. Entries missing a question or an answer are
// dropped.
func Parse(r io.Reader, format Format) ([]Question, error) {
	var (
		raw []Question
		err error
	)
	switch format {
	case FormatCSV:
		raw, err = parseCSV(r)
	case FormatTOML:
		var doc struct {
			Questions []Question `toml:"question"`
		}
		_, err = toml.NewDecoder(r).Decode(&doc)
		raw = doc.Questions
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&raw)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return nil, fmt.Errorf("unsupported question format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s questions: %w", format, err)
	}

	out := make([]Question, 0, len(raw))
	for _, q := range raw {
		q.Category = strings.TrimSpace(q.Category)
		q.Text = strings.TrimSpace(q.Text)
		q.Answer = strings.TrimSpace(q.Answer)
		if q.Text == "" || q.Answer == "" {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func parseCSV(r io.Reader) ([]Question, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	columns := map[string]int{"category": -1, "question": -1, "answer": -1}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, ok := columns[key]; ok {
			columns[key] = i
		}
	}
	if columns["question"] < 0 || columns["answer"] < 0 {
		return nil, fmt.Errorf("csv header must contain question and answer columns, got %v", header)
	}

	field := func(record []string, name string) string {
		i := columns[name]
		if i < 0 || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var out []Question
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Question{
			Category: field(record, "category"),
			Text:     field(record, "question"),
			Answer:   field(record, "answer"),
		})
	}
	return out, nil
}

// Bank is the static question source. It is safe for concurrent use and may
// be reloaded while games are running.
type Bank struct {
	mu        sync.RWMutex
	path      string
	questions []Question
}

// NewBank builds a bank from an in-memory list.
func NewBank(qs []Question) (*Bank, error) {
	if len(qs) == 0 {
		return nil, ErrEmptyBank
	}
	return &Bank{questions: append([]Question(nil), qs...)}, nil
}

// Load reads a bank from path, choosing the decoder by extension.
func Load(path string) (*Bank, error) {
	qs, err := readFile(path)
	if err != nil {
		return nil, err
	}
	b, err := NewBank(qs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.path = path
	return b, nil
}

func readFile(path string) ([]Question, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f, format)
}

// Path returns the file the bank was loaded from, if any.
func (b *Bank) Path() string {
	return b.path
}

// Reload re-reads the bank's file. On failure the current questions are kept.
func (b *Bank) Reload() error {
	if b.path == "" {
		return fmt.Errorf("bank was not loaded from a file")
	}
	qs, err := readFile(b.path)
	if err != nil {
		return err
	}
	if len(qs) == 0 {
		return fmt.Errorf("%s: %w", b.path, ErrEmptyBank)
	}
	b.mu.Lock()
	b.questions = qs
	b.mu.Unlock()
	return nil
}

// Pick returns a uniformly random question.
func (b *Bank) Pick(r *rand.Rand) (Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.questions) == 0 {
		return Question{}, ErrEmptyBank
	}
	return b.questions[r.IntN(len(b.questions))], nil
}

// Len returns the number of questions in the bank.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.questions)
}

// CategoryCount is the number of questions in one category.
type CategoryCount struct {
	Category string
	Count    int
}

// Categories summarises the bank by category, largest first.
func (b *Bank) Categories() []CategoryCount {
	b.mu.RLock()
	counts := make(map[string]int)
	for _, q := range b.questions {
		name := q.Category
		if name == "" {
			name = "uncategorized"
		}
		counts[name]++
	}
	b.mu.RUnlock()

	out := make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CategoryCount{Category: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Questions returns a copy of the bank's questions.
func (b *Bank) Questions() []Question {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Question(nil), b.questions...)
}

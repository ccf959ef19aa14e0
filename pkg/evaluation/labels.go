package evaluation

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hed1ad/logsentry/pkg/io/csv"
)

// Column headers of the ground truth table.
const (
	IDColumn    = "IP Address"
	LabelColumn = "Label"
)

// ErrUnknownLabel is returned for label tokens other than ATTACK and BENIGN.
var ErrUnknownLabel = errors.New("unknown label")

// Label is the ground truth class of a client.
type Label int

const (
	Benign Label = iota
	Attack
)

func (l Label) String() string {
	if l == Attack {
		return "ATTACK"
	}
	return "BENIGN"
}

// ParseLabel accepts ATTACK or BENIGN in any case.
func ParseLabel(token string) (Label, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "ATTACK":
		return Attack, nil
	case "BENIGN":
		return Benign, nil
	}
	return Benign, fmt.Errorf("%w %q", ErrUnknownLabel, token)
}

// GroundTruth maps client identifiers to their labels.
type GroundTruth map[string]Label

// LoadGroundTruth reads a two-column (IP Address, Label) CSV file.
func LoadGroundTruth(path string) (GroundTruth, error) {
	r, err := csv.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("open ground truth: %w", err)
	}
	defer r.Close()

	return readGroundTruth(r)
}

// ReadGroundTruth parses a ground truth table from a stream.
func ReadGroundTruth(src io.Reader) (GroundTruth, error) {
	r, err := csv.NewStreamReader(src)
	if err != nil {
		return nil, fmt.Errorf("open ground truth: %w", err)
	}
	return readGroundTruth(r)
}

func readGroundTruth(r *csv.Reader) (GroundTruth, error) {
	idCol, err := r.Column(IDColumn)
	if err != nil {
		return nil, err
	}
	labelCol, err := r.Column(LabelColumn)
	if err != nil {
		return nil, err
	}

	truth := make(GroundTruth)
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ground truth: %w", err)
		}
		if idCol >= len(row) || labelCol >= len(row) {
			return nil, fmt.Errorf("ground truth line %d: expected %d columns, got %d",
				r.Line(), max(idCol, labelCol)+1, len(row))
		}
		label, err := ParseLabel(row[labelCol])
		if err != nil {
			return nil, fmt.Errorf("ground truth line %d: %w", r.Line(), err)
		}
		truth[row[idCol]] = label
	}

	return truth, nil
}

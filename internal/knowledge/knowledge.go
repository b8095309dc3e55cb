// Package knowledge reads the curated companion list, a text file with one
// rule per line:
//
//	numero:12 accompagnateur:7, 33, 61
//
// Lines without both markers are ignored. A later rule for the same number
// replaces the earlier one.
package knowledge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/rewired-gh/lotoracle/internal/draws"
	"github.com/rewired-gh/lotoracle/internal/logger"
	"github.com/rewired-gh/lotoracle/internal/models"
)

const (
	numberMarker    = "numero:"
	companionMarker = "accompagnateur:"
)

// Stats reports how many lines were read and kept.
type Stats struct {
	Lines     int
	Rules     int
	Malformed int
}

// Parse reads rules from r.
func Parse(r io.Reader) (models.KnowledgeBase, Stats, error) {
	kb := models.NewKnowledgeBase()
	var stats Stats

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		stats.Lines++
		line := scanner.Text()
		if !strings.Contains(line, numberMarker) || !strings.Contains(line, companionMarker) {
			continue
		}

		number, companions, err := parseRule(line)
		if err != nil {
			stats.Malformed++
			logger.Debug("Skipping knowledge line %d: %v", stats.Lines, err)
			continue
		}
		delete(kb, number)
		kb.Add(number, companions...)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("failed to read knowledge base: %w", err)
	}

	stats.Rules = kb.Len()
	return kb, stats, nil
}

func parseRule(line string) (int, []int, error) {
	parts := strings.Split(line, companionMarker)
	if len(parts) != 2 {
		return 0, nil, errors.New("companion marker must appear once")
	}

	head := strings.TrimSpace(strings.Replace(parts[0], numberMarker, "", 1))
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return 0, nil, errors.New("missing number")
	}
	number, err := strconv.Atoi(strings.Trim(fields[0], ",;|-"))
	if err != nil || number < 0 {
		return 0, nil, fmt.Errorf("invalid number %q", fields[0])
	}

	return number, draws.ParseNumbers(parts[1]), nil
}

// LoadFile parses the knowledge file at path. A missing file is reported as
// draws.ErrSourceUnavailable, which callers must keep distinct from an empty
// knowledge base.
func LoadFile(path string) (models.KnowledgeBase, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: knowledge file %s not found", draws.ErrSourceUnavailable, path)
		}
		return nil, fmt.Errorf("%w: %v", draws.ErrSourceUnavailable, err)
	}
	defer func() { _ = f.Close() }()

	kb, stats, err := Parse(f)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded %d knowledge rules from %s (%d malformed lines)", stats.Rules, path, stats.Malformed)
	return kb, nil
}

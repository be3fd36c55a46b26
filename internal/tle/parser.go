package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
)

// tleLineLength is the fixed length of both element lines.
const tleLineLength = 69

// LoadResult holds the accepted records of one load together with the
// excluded entries and their rejection reasons.
type LoadResult struct {
	Records  []TLERecord
	Excluded []Exclusion
}

// Load reads 3-line NORAD TLE format (name, line 1, line 2) from r.
//
// Each group is validated before acceptance: both element lines must be 69
// characters, carry the "1 "/"2 " markers, agree on the catalog number, and
// the six orbital fields on line 2 must parse as floats. Malformed entries
// are excluded and counted with a reason, never repaired. Records are tagged
// with the given constellation; pass an empty ID to classify by name.
func Load(r io.Reader, id constellation.ID, logger *slog.Logger) (LoadResult, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return LoadResult{}, fmt.Errorf("reading TLE data: %w", err)
	}

	var result LoadResult
	for i := 0; i+2 < len(lines); {
		name := strings.TrimSpace(lines[i])
		line1 := lines[i+1]
		line2 := lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Misaligned group: advance one line to resync on the next
			// name/line1/line2 triplet.
			result.Excluded = append(result.Excluded, Exclusion{Name: name, Reason: "missing line markers"})
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		rec, ferr := validateGroup(name, line1, line2, i)
		if ferr != nil {
			result.Excluded = append(result.Excluded, Exclusion{Name: name, Reason: ferr.Reason})
			logger.Warn("excluding TLE entry", "name", name, "reason", ferr.Reason)
			i += 3
			continue
		}

		if id != "" {
			rec.Constellation = id
		} else {
			rec.Constellation = constellation.FromName(name)
		}
		result.Records = append(result.Records, rec)
		i += 3
	}

	return result, nil
}

// validateGroup applies the full format validation to one triplet and
// builds the record when it passes.
func validateGroup(name, line1, line2 string, lineIdx int) (TLERecord, *FormatError) {
	fail := func(reason string) (TLERecord, *FormatError) {
		return TLERecord{}, &FormatError{Line: lineIdx, Name: name, Reason: reason}
	}

	if len(line1) != tleLineLength {
		return fail(fmt.Sprintf("line1 length %d, expected %d", len(line1), tleLineLength))
	}
	if len(line2) != tleLineLength {
		return fail(fmt.Sprintf("line2 length %d, expected %d", len(line2), tleLineLength))
	}

	// Catalog number occupies columns 3-7 of both lines and must agree.
	cat1 := strings.TrimSpace(line1[2:7])
	cat2 := strings.TrimSpace(line2[2:7])
	if cat1 != cat2 {
		return fail(fmt.Sprintf("catalog number mismatch: line1 %q, line2 %q", cat1, cat2))
	}
	catalogNumber, err := strconv.Atoi(cat1)
	if err != nil {
		return fail(fmt.Sprintf("invalid catalog number %q", cat1))
	}

	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return fail(fmt.Sprintf("invalid epoch: %v", err))
	}

	if _, err := parseLine2Elements(line2); err != nil {
		return fail(fmt.Sprintf("invalid orbital fields: %v", err))
	}

	return TLERecord{
		CatalogNumber: catalogNumber,
		Name:          name,
		Line1:         line1,
		Line2:         line2,
		Epoch:         epoch,
	}, nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to
// time.Time. Year 00-56 maps to the 2000s, 57-99 to the 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// dayOfYear is 1-based: day 1.0 is Jan 1 00:00 UTC.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}

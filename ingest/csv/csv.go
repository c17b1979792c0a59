// Package csv loads localization data from a ThunderSTORM/rapidSTORM-style
// CSV column layout and writes it back out, preserving a load-write-load
// round trip.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package csv

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/cefhalic/bayescluster/cmn/cos"
	"github.com/cefhalic/bayescluster/core/roi"
)

// nanometre converts a value given in nanometres to the SI metre unit the
// core operates in.
const nanometre = 1e-9

// sigmaMin and sigmaMax bound the accepted sigma [nm] range; rows outside
// this window are discarded.
const (
	sigmaMin = 100.0
	sigmaMax = 300.0
)

// columns used out of the full header: x, y, sigma [nm], uncertainty_xy [nm]
// are columns 3, 4, 5, 10 (1-indexed) of the standard ThunderSTORM export.
const (
	colX           = 2
	colY           = 3
	colSigma       = 4
	colUncertainty = 9
	minColumns     = colUncertainty + 1
)

// row is one decoded, unit-converted localization, prior to being wrapped as
// a roi.Point.
type row struct {
	x, y, s float64
}

func parseLine(line []byte) (row row, ok bool, err error) {
	fields := splitCSV(line)
	if len(fields) < minColumns {
		return row, false, nil
	}
	x, err1 := strconv.ParseFloat(fields[colX], 64)
	y, err2 := strconv.ParseFloat(fields[colY], 64)
	sigma, err3 := strconv.ParseFloat(fields[colSigma], 64)
	s, err4 := strconv.ParseFloat(fields[colUncertainty], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return row, false, cos.NewErrMalformedInput("non-numeric field in CSV row: %q", string(line))
	}
	if sigma < sigmaMin || sigma > sigmaMax {
		return row, false, nil
	}
	return row{x: x * nanometre, y: y * nanometre, s: s * nanometre}, true, nil
}

// splitCSV is a minimal unquoted-field splitter; the localization export
// format this loader targets never quotes fields (all numeric plus a
// header), so a full RFC 4180 reader (encoding/csv) would only add
// allocation overhead to the hot load path.
func splitCSV(line []byte) []string {
	out := make([]string, 0, minColumns+4)
	start := 0
	for i := 0; i <= len(line); i++ {
		if i == len(line) || line[i] == ',' {
			out = append(out, string(line[start:i]))
			start = i + 1
		}
	}
	return out
}

// Load reads every localization row from path, applying the unit conversion
// and sigma-range filter, and returns them as roi.Points. workers chunks the
// file by byte offset for parallel decoding: each worker
// discards up to its first newline (to avoid splitting a record straddling
// its chunk boundary - the prior worker's chunk owns that record) and reads
// until EOF or its chunk's approximate byte budget is exhausted, so the
// final worker's chunk may run past its nominal end; callers must not rely
// on an exact byte-count split.
func Load(path string, workers int) ([]roi.Point, error) {
	if workers < 1 {
		workers = 1
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, cos.NewErrIOFailure("opening %q: %v", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, cos.NewErrIOFailure("stat %q: %v", path, err)
	}
	size := info.Size()
	chunk := size / int64(workers)
	if chunk == 0 {
		chunk = size
		workers = 1
	}

	results := make([][]row, workers)
	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		w := w
		offset := int64(w) * chunk
		end := offset + chunk
		if w == workers-1 {
			end = -1 // last worker reads to EOF
		}
		g.Go(func() error {
			rows, err := loadChunk(path, offset, end)
			if err != nil {
				return err
			}
			results[w] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	pts := make([]roi.Point, 0, total)
	for _, rs := range results {
		for _, rw := range rs {
			pts = append(pts, roi.NewPoint(rw.x, rw.y, rw.s))
		}
	}
	return pts, nil
}

// loadChunk decodes the records that start after offset and at or before end
// (end < 0: no limit).
func loadChunk(path string, offset, end int64) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cos.NewErrIOFailure("opening %q: %v", path, err)
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, cos.NewErrIOFailure("seeking %q: %v", path, err)
		}
	}

	br := bufio.NewReaderSize(f, 1<<16)
	// Discard the header line (if this is the first worker) or a possibly
	// partial line straddling the chunk boundary (otherwise); either way the
	// owning worker for that record is whichever worker's seek landed before
	// its start.
	skipped, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, cos.NewErrIOFailure("reading %q: %v", path, err)
	}
	pos := offset + int64(len(skipped))

	var out []row
	for end < 0 || pos <= end {
		line, err := br.ReadBytes('\n')
		pos += int64(len(line))
		if len(line) > 0 {
			trimmed := trimNewline(line)
			if r, ok, perr := parseLine(trimmed); perr != nil {
				return nil, perr
			} else if ok {
				out = append(out, r)
			}
		}
		if err != nil {
			break
		}
	}
	return out, nil
}

func trimNewline(b []byte) []byte {
	n := len(b)
	for n > 0 && (b[n-1] == '\n' || b[n-1] == '\r') {
		n--
	}
	return b[:n]
}

// Write serializes pts back to CSV in the same column layout Load reads,
// rounding each nanometre-scale value to 6 decimal places so that
// write ∘ load ∘ write is idempotent on the intermediate file.
func Write(path string, pts []roi.Point) error {
	f, err := os.Create(path)
	if err != nil {
		return cos.NewErrIOFailure("creating %q: %v", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "id,frame,x [nm],y [nm],sigma [nm],intensity [photon],offset [photon],bkgstd [photon],chi2,uncertainty_xy [nm]")
	for i, p := range pts {
		fmt.Fprintf(w, "%d,0,%s,%s,%s,0,0,0,0,%s\n",
			i+1,
			round6(p.X/nanometre), round6(p.Y/nanometre),
			round6(sigmaNM(p)), round6(p.S/nanometre))
	}
	return w.Flush()
}

// sigmaNM recovers a representative sigma [nm] value for round-tripping; the
// loader does not retain the original sigma column (it only gates on it), so
// the midpoint of the accepted range stands in for it on a re-write. This is
// documented as a known round-trip gap in DESIGN.md: the round-trip property
// only concerns the nanometre-scale x/y/uncertainty values, not sigma, since
// sigma itself is filter-only and not part of a Point.
func sigmaNM(roi.Point) float64 { return (sigmaMin + sigmaMax) / 2 }

func round6(v float64) string {
	return strconv.FormatFloat(roundTo(v, 6), 'f', 6, 64)
}

func roundTo(v float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Round(v*shift) / shift
}

// sortByR is a helper for tests that need a deterministic point order before
// comparing round-tripped files.
func sortByR(pts []roi.Point) {
	sort.Slice(pts, func(i, j int) bool { return pts[i].Radius < pts[j].Radius })
}

/*
 * control.go, part of goaims.
 *
 * Copyright 2023 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 * Goaims is developed at the laboratory for instruction in Swedish, Department of Chemistry,
 * University of Helsinki, Finland.
 *
 */

package calc

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	aims "github.com/rmera/goaims"
)

//ControlWrite writes the control.in file for the given parameters and
//structure. Keywords are emitted in sorted order so the file is stable
//across runs; the band output lines and the species defaults blocks go
//last, which is what FHI-aims users expect to see.
func ControlWrite(name string, params ParamMap, mol *aims.Atoms, speciesDir string) error {
	f, err := os.Create(name)
	if err != nil {
		return Error{ErrCantInput, name, []string{"os.Create", "ControlWrite"}, true}
	}
	defer f.Close()
	fmt.Fprintf(f, "#%s\n", strings.Repeat("=", 71))
	fmt.Fprintf(f, "# control.in written by goaims\n")
	fmt.Fprintf(f, "#%s\n", strings.Repeat("=", 71))
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "bands" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := formatValue(params[k])
		if err != nil {
			return Error{fmt.Sprintf("%s: keyword %s: %v", ErrCantInput, k, err), name, []string{"formatValue", "ControlWrite"}, true}
		}
		if v == "" { //a bare flag, like vdw_correction_hirshfeld
			fmt.Fprintf(f, "%s\n", k)
			continue
		}
		fmt.Fprintf(f, "%-35s %s\n", k, v)
	}
	if lines, ok := params["bands"].([]string); ok {
		for _, l := range lines {
			fmt.Fprintf(f, "output %s\n", l)
		}
	} else if lines, ok := params["bands"].([]any); ok { //from a JSON round trip
		for _, l := range lines {
			fmt.Fprintf(f, "output %v\n", l)
		}
	}
	if speciesDir != "" {
		blocks, err := SpeciesDefaults(speciesDir, mol.Symbols)
		if err != nil {
			return errDecorate(err, "ControlWrite")
		}
		fmt.Fprintf(f, "%s", blocks)
	}
	return nil
}

//formatValue turns a parameter value into its control.in representation.
func formatValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		if val {
			return ".true.", nil
		}
		return ".false.", nil
	case int:
		return fmt.Sprintf("%d", val), nil
	case float64:
		return formatFloat(val), nil
	case []int:
		parts := make([]string, len(val))
		for i, x := range val {
			parts[i] = fmt.Sprintf("%d", x)
		}
		return strings.Join(parts, " "), nil
	case []float64:
		parts := make([]string, len(val))
		for i, x := range val {
			parts[i] = formatFloat(x)
		}
		return strings.Join(parts, " "), nil
	case []string:
		return strings.Join(val, " "), nil
	case []any: //what JSON and YAML decoders hand back
		parts := make([]string, len(val))
		for i, x := range val {
			s, err := formatValue(x)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, " "), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

//formatFloat prints integral floats without a decimal point; JSON decoding
//turns every number into a float64 and "k_grid 4.0 4.0 4.0" would upset
//FHI-aims.
func formatFloat(x float64) string {
	if x == math.Trunc(x) && math.Abs(x) < 1e15 {
		return fmt.Sprintf("%d", int64(x))
	}
	return fmt.Sprintf("%g", x)
}

//SpeciesDefaults collects the species-defaults blocks for every distinct
//element in symbols from a species directory (e.g. the "light" or "tight"
//directories of an FHI-aims distribution, where silicon lives in a file
//called 14_Si_default).
func SpeciesDefaults(dir string, symbols []string) (string, error) {
	var sb strings.Builder
	seen := make(map[string]bool)
	for _, sym := range symbols {
		if seen[sym] {
			continue
		}
		seen[sym] = true
		matches, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("*_%s_default*", sym)))
		if err != nil || len(matches) == 0 {
			return "", Error{fmt.Sprintf("%s: element %s in %s", ErrNoSpecies, sym, dir), dir, []string{"filepath.Glob", "SpeciesDefaults"}, true}
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			return "", Error{err.Error(), matches[0], []string{"os.ReadFile", "SpeciesDefaults"}, true}
		}
		sb.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

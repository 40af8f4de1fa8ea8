/*
 * geometry.go, part of goaims.
 *
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
 *
 * Goaims is developed at the laboratory for instruction in Swedish, Department of Chemistry,
 * University of Helsinki, Finland.
 *
 *
 */

package aims

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

//GeometryRead reads an FHI-aims geometry.in file and returns the structure.
//Both "atom" (Cartesian) and "atom_frac" (fractional) entries are supported;
//fractional positions are converted to Cartesian once all lattice vectors
//have been read. Lines starting with # are ignored, as are the per-atom
//modifiers (initial_moment, constrain_relaxation, etc.) that FHI-aims allows
//between atom entries.
func GeometryRead(geoname string) (*Atoms, error) {
	f, err := os.Open(geoname)
	if err != nil {
		return nil, Error{ErrCantOpen, geoname, []string{"os.Open", "GeometryRead"}, true}
	}
	defer f.Close()
	var symbols []string
	var coords [][3]float64
	var frac []bool
	var lattice [][3]float64
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "lattice_vector":
			v, err := parse3(fields, geoname)
			if err != nil {
				return nil, err
			}
			lattice = append(lattice, v)
		case "atom", "atom_frac":
			v, err := parse3(fields, geoname)
			if err != nil {
				return nil, err
			}
			if len(fields) < 5 {
				return nil, Error{ErrBadGeometry, geoname, []string{"GeometryRead"}, true}
			}
			symbols = append(symbols, fields[4])
			coords = append(coords, v)
			frac = append(frac, fields[0] == "atom_frac")
		default:
			//initial_moment and friends; they don't affect the structure.
			continue
		}
	}
	if err := scan.Err(); err != nil {
		return nil, Error{err.Error(), geoname, []string{"bufio.Scanner.Scan", "GeometryRead"}, true}
	}
	if len(symbols) == 0 {
		return nil, Error{ErrBadGeometry, geoname, []string{"GeometryRead"}, true}
	}
	mol, err := NewAtoms(symbols, coords)
	if err != nil {
		return nil, err
	}
	if len(lattice) > 0 {
		if len(lattice) != 3 {
			return nil, Error{fmt.Sprintf("%s: %d lattice vectors found, need 3", ErrBadGeometry, len(lattice)), geoname, []string{"GeometryRead"}, true}
		}
		mol.SetLattice([3][3]float64{lattice[0], lattice[1], lattice[2]})
	}
	for i, isfrac := range frac {
		if !isfrac {
			continue
		}
		if mol.Lattice == nil {
			return nil, Error{fmt.Sprintf("%s: atom_frac without lattice vectors", ErrBadGeometry), geoname, []string{"GeometryRead"}, true}
		}
		mol.Coords[i] = mol.FracToCart(mol.Coords[i])
	}
	return mol, nil
}

//parse3 parses fields[1:4] of a geometry.in line into 3 floats.
func parse3(fields []string, geoname string) ([3]float64, error) {
	var v [3]float64
	if len(fields) < 4 {
		return v, Error{ErrBadGeometry, geoname, []string{"parse3"}, true}
	}
	for i := 0; i < 3; i++ {
		val, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return v, Error{err.Error(), geoname, []string{"strconv.ParseFloat", "parse3"}, true}
		}
		v[i] = val
	}
	return v, nil
}

//GeometryWrite writes the structure as an FHI-aims geometry.in file, lattice
//vectors first, then Cartesian atom entries.
func GeometryWrite(geoname string, mol *Atoms) error {
	if mol == nil || mol.Len() == 0 {
		return Error{ErrNilStructure, geoname, []string{"GeometryWrite"}, true}
	}
	f, err := os.Create(geoname)
	if err != nil {
		return Error{ErrCantOpen, geoname, []string{"os.Create", "GeometryWrite"}, true}
	}
	defer f.Close()
	fmt.Fprintf(f, "# geometry.in written by goaims\n")
	if mol.Lattice != nil {
		for i := 0; i < 3; i++ {
			fmt.Fprintf(f, "lattice_vector %16.8f %16.8f %16.8f\n", mol.Lattice[i][0], mol.Lattice[i][1], mol.Lattice[i][2])
		}
	}
	for i, sym := range mol.Symbols {
		fmt.Fprintf(f, "atom %16.8f %16.8f %16.8f %s\n", mol.Coords[i][0], mol.Coords[i][1], mol.Coords[i][2], sym)
	}
	return nil
}

/*
 * kpoints.go, part of goaims.
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
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

//KGridForDensity converts a k-point density (points per Angstrom^-1) into a
//Monkhorst-Pack grid for the given structure. Non-periodic directions get a
//single point. If even is true, the grid sizes are rounded up to even
//numbers, which is what FHI-aims users normally want.
func KGridForDensity(mol *Atoms, density float64, even bool) ([3]int, error) {
	var grid [3]int
	rec, err := mol.ReciprocalCell()
	if err != nil {
		return grid, err
	}
	for i := 0; i < 3; i++ {
		if !mol.PBC[i] {
			grid[i] = 1
			continue
		}
		row := rec.RawRowView(i)
		k := 2 * math.Pi * mat.Norm(mat.NewVecDense(3, row), 2) * density
		if even {
			grid[i] = 2 * int(math.Ceil(k/2))
		} else {
			grid[i] = int(math.Ceil(k))
		}
		if grid[i] < 1 {
			grid[i] = 1
		}
	}
	return grid, nil
}

//A BandSegment is one straight segment of a band path in fractional
//reciprocal coordinates.
type BandSegment struct {
	Start      [3]float64
	End        [3]float64
	StartLabel string
	EndLabel   string
	Points     int
}

//ControlLine formats the segment as an FHI-aims control.in "band" line.
func (b BandSegment) ControlLine() string {
	return fmt.Sprintf("band %9.5f%9.5f%9.5f %9.5f%9.5f%9.5f %4d %3s%3s",
		b.Start[0], b.Start[1], b.Start[2], b.End[0], b.End[1], b.End[2], b.Points, b.StartLabel, b.EndLabel)
}

//Special points and default paths per lattice type. Only the common
//high-symmetry lattices are tabulated; everything else falls back to a
//Gamma-X segment, which is always better than refusing to compute bands.
var specialPoints = map[string]map[string][3]float64{
	"cubic": {
		"G": {0, 0, 0}, "X": {0, 0.5, 0}, "M": {0.5, 0.5, 0}, "R": {0.5, 0.5, 0.5},
	},
	"fcc": {
		"G": {0, 0, 0}, "X": {0.5, 0, 0.5}, "W": {0.5, 0.25, 0.75},
		"K": {0.375, 0.375, 0.75}, "L": {0.5, 0.5, 0.5},
	},
	"bcc": {
		"G": {0, 0, 0}, "H": {0.5, -0.5, 0.5}, "N": {0, 0, 0.5}, "P": {0.25, 0.25, 0.25},
	},
	"hexagonal": {
		"G": {0, 0, 0}, "M": {0.5, 0, 0}, "K": {1.0 / 3, 1.0 / 3, 0}, "A": {0, 0, 0.5},
	},
}

var defaultPaths = map[string][]string{
	"cubic":     {"G", "X", "M", "G", "R", "X"},
	"fcc":       {"G", "X", "W", "K", "G", "L"},
	"bcc":       {"G", "H", "N", "G", "P", "H"},
	"hexagonal": {"G", "M", "K", "G", "A"},
}

//BandPath builds the default high-symmetry band path for the structure's
//Bravais lattice, with the number of points per segment set by density
//(points per Angstrom^-1 of reciprocal path length).
func BandPath(mol *Atoms, density float64) ([]BandSegment, error) {
	if mol.Lattice == nil {
		return nil, Error{ErrNoLattice, "", []string{"BandPath"}, true}
	}
	kind := bravaisKind(mol)
	points, ok := specialPoints[kind]
	if !ok {
		points = map[string][3]float64{"G": {0, 0, 0}, "X": {0.5, 0, 0}}
	}
	path, ok := defaultPaths[kind]
	if !ok {
		path = []string{"G", "X"}
	}
	rec, err := mol.ReciprocalCell()
	if err != nil {
		return nil, err
	}
	var segments []BandSegment
	for i := 0; i < len(path)-1; i++ {
		start := points[path[i]]
		end := points[path[i+1]]
		//segment length in Cartesian reciprocal space, 2*pi included
		var d [3]float64
		for j := 0; j < 3; j++ {
			d[j] = (end[0]-start[0])*rec.At(0, j) + (end[1]-start[1])*rec.At(1, j) + (end[2]-start[2])*rec.At(2, j)
		}
		length := 2 * math.Pi * math.Sqrt(d[0]*d[0]+d[1]*d[1]+d[2]*d[2])
		n := int(math.Round(length * density))
		if n < 2 {
			n = 2
		}
		segments = append(segments, BandSegment{
			Start: start, End: end,
			StartLabel: path[i], EndLabel: path[i+1],
			Points: n,
		})
	}
	return segments, nil
}

//bravaisKind takes a rough look at the lattice and classifies it into one of
//the tabulated types. The test is on lengths and angles of the primitive
//vectors, so a conventional cubic cell of an fcc crystal will be seen as
//"cubic"; that is the cell the user chose to work with, so the path tables
//for it are the right ones anyway.
func bravaisKind(mol *Atoms) string {
	a := norm3(mol.Lattice[0])
	b := norm3(mol.Lattice[1])
	c := norm3(mol.Lattice[2])
	alpha := angle3(mol.Lattice[1], mol.Lattice[2])
	beta := angle3(mol.Lattice[0], mol.Lattice[2])
	gamma := angle3(mol.Lattice[0], mol.Lattice[1])
	const tol = 1e-4
	eq := func(x, y float64) bool { return math.Abs(x-y) < tol*(x+y)/2 }
	angEq := func(x, y float64) bool { return math.Abs(x-y) < 1e-3 }
	switch {
	case eq(a, b) && eq(b, c) && angEq(alpha, 90) && angEq(beta, 90) && angEq(gamma, 90):
		return "cubic"
	case eq(a, b) && eq(b, c) && angEq(alpha, 60) && angEq(beta, 60) && angEq(gamma, 60):
		return "fcc"
	case eq(a, b) && eq(b, c) && angEq(alpha, 109.4712) && angEq(beta, 109.4712) && angEq(gamma, 109.4712):
		return "bcc"
	case eq(a, b) && angEq(alpha, 90) && angEq(beta, 90) && angEq(gamma, 120):
		return "hexagonal"
	}
	return "unknown"
}

func norm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func angle3(u, v [3]float64) float64 {
	dot := u[0]*v[0] + u[1]*v[1] + u[2]*v[2]
	return math.Acos(dot/(norm3(u)*norm3(v))) * Rad2Deg
}

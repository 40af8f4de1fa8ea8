/*
 * aims_test.go, part of goaims.
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

package aims

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

//TestGeometryIO reads the Si test geometry, writes it back, reads it again
//and checks that nothing was lost on the way.
func TestGeometryIO(Te *testing.T) {
	mol, err := GeometryRead("test/geometry.in")
	if err != nil {
		Te.Fatal(err)
	}
	if mol.Len() != 2 || !mol.Periodic() {
		Te.Fatalf("Expected a 2-atom periodic structure, got %d atoms", mol.Len())
	}
	//the second atom came in fractional, (1/4,1/4,1/4) of the diamond cell
	want := mol.FracToCart([3]float64{0.25, 0.25, 0.25})
	for i := 0; i < 3; i++ {
		if math.Abs(mol.Coords[1][i]-want[i]) > 1e-8 {
			Te.Errorf("atom_frac conversion off: %v vs %v", mol.Coords[1], want)
		}
	}
	name := filepath.Join(Te.TempDir(), "geometry.in")
	if err := GeometryWrite(name, mol); err != nil {
		Te.Fatal(err)
	}
	mol2, err := GeometryRead(name)
	if err != nil {
		Te.Fatal(err)
	}
	if mol2.Len() != mol.Len() {
		Te.Fatal("The round trip lost atoms")
	}
	for i := range mol.Coords {
		for j := 0; j < 3; j++ {
			if math.Abs(mol.Coords[i][j]-mol2.Coords[i][j]) > 1e-6 {
				Te.Errorf("Coordinates changed in the round trip: %v vs %v", mol.Coords[i], mol2.Coords[i])
			}
		}
	}
	fmt.Println("geometry.in round trip survived")
}

func TestVolumeAndReciprocal(Te *testing.T) {
	mol, err := GeometryRead("test/geometry.in")
	if err != nil {
		Te.Fatal(err)
	}
	vol := mol.Volume()
	//fcc cell with a = 2*2.715: V = a^3/4
	a := 2 * 2.715
	if math.Abs(vol-a*a*a/4) > 1e-6 {
		Te.Errorf("Wrong cell volume: %f", vol)
	}
	recip, err := mol.ReciprocalCell()
	if err != nil {
		Te.Fatal(err)
	}
	//lattice * recip^T = identity
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var dot float64
			for k := 0; k < 3; k++ {
				dot += mol.Lattice[i][k] * recip.At(j, k)
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(dot-want) > 1e-10 {
				Te.Errorf("Reciprocal cell is not the inverse transpose, (%d,%d): %f", i, j, dot)
			}
		}
	}
}

func TestKGridForDensity(Te *testing.T) {
	mol, err := GeometryRead("test/geometry.in")
	if err != nil {
		Te.Fatal(err)
	}
	grid, err := KGridForDensity(mol, 5.0, true)
	if err != nil {
		Te.Fatal(err)
	}
	fmt.Println("k-grid at density 5.0:", grid)
	for _, n := range grid {
		if n < 1 {
			Te.Fatalf("Nonsense grid: %v", grid)
		}
		if n%2 != 0 {
			Te.Errorf("Asked for even divisions, got %v", grid)
		}
	}
	denser, err := KGridForDensity(mol, 10.0, false)
	if err != nil {
		Te.Fatal(err)
	}
	for i := range denser {
		if denser[i] < grid[i] {
			Te.Errorf("A higher density should not give a coarser grid: %v vs %v", denser, grid)
		}
	}
	if _, err := KGridForDensity(&Atoms{Symbols: []string{"H"}, Coords: [][3]float64{{0, 0, 0}}}, 5.0, true); err == nil {
		Te.Error("A non-periodic structure can not have a k-grid")
	}
}

func TestBandPath(Te *testing.T) {
	mol, err := GeometryRead("test/geometry.in")
	if err != nil {
		Te.Fatal(err)
	}
	segments, err := BandPath(mol, 20)
	if err != nil {
		Te.Fatal(err)
	}
	if len(segments) == 0 {
		Te.Fatal("No band segments for an fcc lattice")
	}
	for _, s := range segments {
		line := s.ControlLine()
		fmt.Println(line)
		if !strings.HasPrefix(line, "band ") {
			Te.Errorf("Malformed band line: %q", line)
		}
		if s.Points < 2 {
			Te.Errorf("A band segment needs at least 2 points, got %d", s.Points)
		}
	}
}

func TestSupercell(Te *testing.T) {
	mol, err := GeometryRead("test/geometry.in")
	if err != nil {
		Te.Fatal(err)
	}
	super, err := mol.Supercell([3]int{2, 2, 2})
	if err != nil {
		Te.Fatal(err)
	}
	if super.Len() != 8*mol.Len() {
		Te.Fatalf("A 2x2x2 supercell of %d atoms should have %d, got %d", mol.Len(), 8*mol.Len(), super.Len())
	}
	if math.Abs(super.Volume()-8*mol.Volume()) > 1e-6 {
		Te.Error("The supercell volume should be 8 times the cell volume")
	}
	if _, err := mol.Supercell([3]int{0, 2, 2}); err == nil {
		Te.Error("A zero repetition makes no sense")
	}
}

func TestArchiveAndRestore(Te *testing.T) {
	src := Te.TempDir()
	dst := Te.TempDir()
	content := []byte("Have a nice day\n")
	for _, name := range []string{"aims.out", "D_spin_01_kpt_000001.csc", "geometry.in.next_step"} {
		if err := os.WriteFile(filepath.Join(src, name), content, 0644); err != nil {
			Te.Fatal(err)
		}
	}
	if err := ArchiveOutputs(src); err != nil {
		Te.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(src, "aims.out")); !os.IsNotExist(err) {
		Te.Error("aims.out should be gone after archiving")
	}
	if _, err := os.Stat(filepath.Join(src, "aims.out.zst")); err != nil {
		Te.Error("aims.out.zst should exist after archiving")
	}
	//the restart files must come back, decompressed where needed
	if err := CopyOutputs(src, dst, RestartPatterns); err != nil {
		Te.Fatal(err)
	}
	for _, name := range []string{"D_spin_01_kpt_000001.csc", "geometry.in.next_step"} {
		data, err := os.ReadFile(filepath.Join(dst, name))
		if err != nil {
			Te.Fatalf("Restart file %s did not survive the archive round trip: %v", name, err)
		}
		if string(data) != string(content) {
			Te.Errorf("Restart file %s was corrupted", name)
		}
	}
}

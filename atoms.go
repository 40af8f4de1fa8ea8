/*
 * atoms.go, part of goaims.
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
/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

package aims

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

//Unit conversion factors. FHI-aims reports energies in eV and distances in
//Angstrom, so these are mostly needed when talking to other codes.
const (
	Ha2eV   = 27.211386245988
	EV2Ha   = 1 / Ha2eV
	Bohr2A  = 0.529177210903
	A2Bohr  = 1 / Bohr2A
	EV2Kcal = 23.060548
	Deg2Rad = math.Pi / 180
	Rad2Deg = 180 / math.Pi
)

//Atoms represents a molecular or periodic structure: the chemical symbols,
//the Cartesian coordinates in Angstrom, and, for periodic systems, the
//lattice vectors (rows, in Angstrom) together with the periodicity of each
//direction. It is deliberately much smaller than a full topology object:
//FHI-aims only ever sees symbols, positions and a cell.
type Atoms struct {
	Symbols []string       `json:"symbols"`
	Coords  [][3]float64   `json:"coords"`
	Lattice *[3][3]float64 `json:"lattice,omitempty"`
	PBC     [3]bool        `json:"pbc"`
}

//NewAtoms builds an Atoms object from symbols and coordinates. It returns an
//error if the slices don't match or are empty.
func NewAtoms(symbols []string, coords [][3]float64) (*Atoms, error) {
	if len(symbols) == 0 || len(symbols) != len(coords) {
		return nil, fmt.Errorf("goaims: %d symbols given for %d coordinates", len(symbols), len(coords))
	}
	return &Atoms{Symbols: symbols, Coords: coords}, nil
}

//SetLattice sets the lattice vectors (given as rows) and marks all three
//directions as periodic.
func (A *Atoms) SetLattice(lattice [3][3]float64) {
	l := lattice
	A.Lattice = &l
	A.PBC = [3]bool{true, true, true}
}

//Len returns the number of atoms.
func (A *Atoms) Len() int {
	return len(A.Symbols)
}

//Periodic returns true if the structure is periodic in at least one direction.
func (A *Atoms) Periodic() bool {
	return A.PBC[0] || A.PBC[1] || A.PBC[2]
}

//Copy returns a deep copy of the structure.
func (A *Atoms) Copy() *Atoms {
	if A == nil {
		panic("Attempted to copy a nil Atoms")
	}
	N := new(Atoms)
	N.Symbols = make([]string, len(A.Symbols))
	copy(N.Symbols, A.Symbols)
	N.Coords = make([][3]float64, len(A.Coords))
	copy(N.Coords, A.Coords)
	if A.Lattice != nil {
		l := *A.Lattice
		N.Lattice = &l
	}
	N.PBC = A.PBC
	return N
}

//LatticeMatrix returns the lattice vectors as a 3x3 gonum matrix with the
//vectors as rows, or nil for a non-periodic structure.
func (A *Atoms) LatticeMatrix() *mat.Dense {
	if A.Lattice == nil {
		return nil
	}
	m := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, A.Lattice[i][j])
		}
	}
	return m
}

//Volume returns the cell volume in Angstrom^3. It panics on non-periodic
//structures, as asking for their volume is way-most likely a bug.
func (A *Atoms) Volume() float64 {
	l := A.LatticeMatrix()
	if l == nil {
		panic("Volume requested for a structure with no lattice")
	}
	return math.Abs(mat.Det(l))
}

//ReciprocalCell returns the reciprocal lattice vectors as rows, without the
//2*pi factor (the same convention ASE uses, i.e. inverse-transpose of the
//cell). Returns an error for singular cells.
func (A *Atoms) ReciprocalCell() (*mat.Dense, error) {
	l := A.LatticeMatrix()
	if l == nil {
		return nil, fmt.Errorf("goaims: reciprocal cell of a non-periodic structure")
	}
	var inv mat.Dense
	if err := inv.Inverse(l); err != nil {
		return nil, fmt.Errorf("goaims: singular lattice: %v", err)
	}
	rec := mat.NewDense(3, 3, nil)
	rec.CloneFrom(inv.T())
	return rec, nil
}

//FracToCart converts fractional coordinates to Cartesian using the current
//lattice. It panics if there is no lattice.
func (A *Atoms) FracToCart(frac [3]float64) [3]float64 {
	if A.Lattice == nil {
		panic("FracToCart on a structure with no lattice")
	}
	var cart [3]float64
	for j := 0; j < 3; j++ {
		cart[j] = frac[0]*A.Lattice[0][j] + frac[1]*A.Lattice[1][j] + frac[2]*A.Lattice[2][j]
	}
	return cart
}

//CartToFrac converts Cartesian coordinates to fractional ones.
func (A *Atoms) CartToFrac(cart [3]float64) ([3]float64, error) {
	rec, err := A.ReciprocalCell()
	if err != nil {
		return [3]float64{}, err
	}
	var frac [3]float64
	for i := 0; i < 3; i++ {
		frac[i] = cart[0]*rec.At(i, 0) + cart[1]*rec.At(i, 1) + cart[2]*rec.At(i, 2)
	}
	return frac, nil
}

//Supercell returns a new structure replicated n[i] times along each lattice
//vector. Coordinates are shifted by the corresponding lattice translations.
func (A *Atoms) Supercell(n [3]int) (*Atoms, error) {
	if A.Lattice == nil {
		return nil, fmt.Errorf("goaims: supercell of a non-periodic structure")
	}
	for _, v := range n {
		if v < 1 {
			return nil, fmt.Errorf("goaims: invalid supercell multiple %d", v)
		}
	}
	S := new(Atoms)
	S.PBC = A.PBC
	var lat [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			lat[i][j] = A.Lattice[i][j] * float64(n[i])
		}
	}
	S.Lattice = &lat
	for a := 0; a < n[0]; a++ {
		for b := 0; b < n[1]; b++ {
			for c := 0; c < n[2]; c++ {
				shift := A.FracToCart([3]float64{float64(a), float64(b), float64(c)})
				for i, sym := range A.Symbols {
					S.Symbols = append(S.Symbols, sym)
					S.Coords = append(S.Coords, [3]float64{
						A.Coords[i][0] + shift[0],
						A.Coords[i][1] + shift[1],
						A.Coords[i][2] + shift[2],
					})
				}
			}
		}
	}
	return S, nil
}

/*
 * phonon.go, part of goaims.
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

package jobs

import (
	aims "github.com/rmera/goaims"
	"github.com/rmera/goaims/calc"
)

//DefaultDisplacement is the finite-difference step, in Angstrom, used to
//probe the force constants.
const DefaultDisplacement = 0.01

//Displacement is one displaced supercell together with the bookkeeping
//needed to assemble force constants afterwards: which atom of the supercell
//moved, and along which Cartesian axis.
type Displacement struct {
	Structure *aims.Atoms
	Atom      int
	Axis      int
	Delta     float64
}

//GenerateDisplacements builds the displaced supercells for a
//finite-difference phonon calculation: the given structure is repeated
//diag(n) times and every atom of the original cell is moved by delta along
//each Cartesian axis in turn. The structure must be periodic.
func GenerateDisplacements(mol *aims.Atoms, n [3]int, delta float64) ([]Displacement, error) {
	if mol == nil {
		return nil, &ConfigurationErr{Reason: "no structure to displace"}
	}
	if !mol.Periodic() {
		return nil, &ConfigurationErr{Reason: "phonon displacements need a periodic structure"}
	}
	if delta <= 0 {
		delta = DefaultDisplacement
	}
	super, err := mol.Supercell(n)
	if err != nil {
		return nil, err
	}
	disps := make([]Displacement, 0, 3*mol.Len())
	for atom := 0; atom < mol.Len(); atom++ {
		for axis := 0; axis < 3; axis++ {
			d := super.Copy()
			d.Coords[atom][axis] += delta
			disps = append(disps, Displacement{Structure: d, Atom: atom, Axis: axis, Delta: delta})
		}
	}
	return disps, nil
}

//NewForceMaker builds jobs for the static force evaluations of a phonon
//calculation: plain SCF with analytical forces on, tight convergence on the
//density so the finite differences are not drowned in SCF noise.
func NewForceMaker() *BaseMaker {
	return &BaseMaker{
		Name:      "phonon static aims",
		Generator: calc.StaticSet(),
		UserParams: calc.ParamMap{
			"compute_forces": true,
			"sc_accuracy_rho": 1e-6,
		},
	}
}

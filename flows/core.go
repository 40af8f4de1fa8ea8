/*
 * core.go, part of goaims.
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

package flows

import (
	aims "github.com/rmera/goaims"
	"github.com/rmera/goaims/flow"
	"github.com/rmera/goaims/jobs"
)

//DoubleRelaxMaker chains two relaxations: a quick one with loose settings
//to take the big steps cheaply, and a second one, started from the first
//one's geometry and density, that does the careful work. This is the usual
//way to relax a structure with FHI-aims without paying tight settings for
//the whole trajectory.
type DoubleRelaxMaker struct {
	Name   string
	Relax1 *jobs.BaseMaker
	Relax2 *jobs.BaseMaker
}

//NewDoubleRelaxMaker builds the standard light-then-tight double
//relaxation. lightSpecies and tightSpecies point at the corresponding
//FHI-aims species-defaults directories; either may be empty to use whatever
//the maker's defaults resolve to.
func NewDoubleRelaxMaker(lightSpecies, tightSpecies string) *DoubleRelaxMaker {
	r1 := jobs.NewRelaxMaker()
	r1.Name = "Relaxation calculation (first)"
	r1.SpeciesDir = lightSpecies
	r2 := jobs.NewRelaxMaker()
	r2.Name = "Relaxation calculation (final)"
	r2.SpeciesDir = tightSpecies
	return &DoubleRelaxMaker{Name: "double relax", Relax1: r1, Relax2: r2}
}

//Make returns the two-job flow. The second relaxation starts from the
//relaxed geometry of the first and restarts from its density.
func (m *DoubleRelaxMaker) Make(mol *aims.Atoms) (*flow.Flow, error) {
	if mol == nil {
		return nil, &jobs.ConfigurationErr{Reason: "no structure to relax"}
	}
	j1 := m.Relax1.Make(jobs.Structure(mol), jobs.NoPrevDir)
	j2 := m.Relax2.Make(jobs.StructureOf(j1.OutputRef()), jobs.DirOf(j1.OutputRef())).After(j1)
	return flow.NewFlow(m.Name, j2.OutputRef(), j1, j2), nil
}

//RelaxBandStructureFlow relaxes a periodic structure and computes its band
//structure along the lattice's standard path, restarting the band run from
//the relaxation's converged density.
func RelaxBandStructureFlow(mol *aims.Atoms, density float64) (*flow.Flow, error) {
	if mol == nil || !mol.Periodic() {
		return nil, &jobs.ConfigurationErr{Reason: "band structures need a periodic structure"}
	}
	relax := jobs.NewRelaxMaker()
	bands := jobs.NewBandStructureMaker(density)
	j1 := relax.Make(jobs.Structure(mol), jobs.NoPrevDir)
	j2 := bands.Make(jobs.StructureOf(j1.OutputRef()), jobs.DirOf(j1.OutputRef())).After(j1)
	return flow.NewFlow("relax and bands", j2.OutputRef(), j1, j2), nil
}

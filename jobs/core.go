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

package jobs

import (
	"fmt"

	"github.com/rmera/goaims/calc"
	"github.com/rmera/goaims/flow"
)

//NewStaticMaker builds jobs for single-point SCF calculations.
func NewStaticMaker() *BaseMaker {
	return &BaseMaker{
		Name:      "SCF Calculation",
		Generator: calc.StaticSet(),
	}
}

//NewRelaxMaker builds jobs for full relaxations (internal coordinates and,
//for periodic structures, the unit cell).
func NewRelaxMaker() *BaseMaker {
	return &BaseMaker{
		Name:      "Relaxation calculation",
		Generator: calc.RelaxSet(true),
	}
}

//NewFixedCellRelaxMaker builds jobs relaxing internal coordinates only.
func NewFixedCellRelaxMaker() *BaseMaker {
	return &BaseMaker{
		Name:      "Relaxation calculation (fixed cell)",
		Generator: calc.RelaxSet(false),
	}
}

//NewBandStructureMaker builds jobs computing the band structure along the
//lattice's standard path, with density points per inverse Angstrom.
func NewBandStructureMaker(density float64) *BaseMaker {
	return &BaseMaker{
		Name:      "bands",
		Generator: calc.BandStructureSet(density),
	}
}

//NewGWMaker builds jobs for GW band-structure calculations.
func NewGWMaker(density float64) *BaseMaker {
	return &BaseMaker{
		Name:      "GW",
		Generator: calc.GWSet(density),
	}
}

//MultiStaticFlow chains static calculations on several structures, each
//restarting from the directory of the previous one so the SCF starts from
//a converged density. The flow's output is the last task document.
func MultiStaticFlow(m *BaseMaker, mols []StructureSource, prev DirSource) (*flow.Flow, error) {
	if len(mols) == 0 {
		return nil, &ConfigurationErr{Reason: "no structures given"}
	}
	jobsList := make([]*flow.Job, 0, len(mols))
	for i, src := range mols {
		j := m.MakeCalc(src, prev, nil, fmt.Sprintf("%s %d", m.Name, i))
		if len(jobsList) > 0 {
			j.After(jobsList[len(jobsList)-1])
		}
		jobsList = append(jobsList, j)
		prev = DirOf(j.OutputRef())
	}
	return flow.NewFlow(m.Name+" series", jobsList[len(jobsList)-1].OutputRef(), jobsList...), nil
}
